package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/akinalp/pulse/events"
	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg/logger"
	"github.com/akinalp/pulse/repository"
	"github.com/akinalp/pulse/ws"
)

// PresenceService answers "who is online" from the gateway's connection index
// and publishes user:status.
//
// A user:status push is sent when a client explicitly reports its status.
// Raw connects and disconnects only update the index and the stored flag,
// unless pushOnConnect is set.
type PresenceService interface {
	OnlineUsers() *models.OnlineUsers
	ReportStatus(ctx context.Context, userID string, isOnline bool) error

	// UserConnected and UserDisconnected are the gateway's presence hooks.
	// They only queue the change and return; see presenceService.
	UserConnected(userID string)
	UserDisconnected(userID string)

	// Close applies every queued change and stops the worker. Hooks called
	// afterwards are dropped.
	Close()
}

// presenceQueueSize bounds the changes waiting for the worker. A hook blocks
// only when this many are pending.
const presenceQueueSize = 256

type presenceChange struct {
	userID string
	online bool
}

// presenceService applies connect/disconnect changes on its own goroutine.
//
// The hooks are called from Hub.Run, which also serializes every join and
// leave. Writing is_online to SQLite there would make every other connection
// wait behind the write (and behind busy_timeout when the database is
// locked). The hooks therefore push onto a queue drained by a single worker.
// One worker keeps the changes in the order Run produced them, so a quick
// connect/disconnect never ends with the user stored as online.
type presenceService struct {
	userRepo      repository.UserRepository
	hub           ws.EventPublisher
	pushOnConnect bool
	log           zerolog.Logger

	changes   chan presenceChange
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewPresenceService builds the presence service and starts its worker. Call
// Close after the hub has shut down.
func NewPresenceService(userRepo repository.UserRepository, hub ws.EventPublisher, pushOnConnect bool) PresenceService {
	s := &presenceService{
		userRepo:      userRepo,
		hub:           hub,
		pushOnConnect: pushOnConnect,
		log:           logger.WithComponent("presence"),
		changes:       make(chan presenceChange, presenceQueueSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *presenceService) OnlineUsers() *models.OnlineUsers {
	return &models.OnlineUsers{OnlineUsers: s.hub.OnlineUserIDs()}
}

func (s *presenceService) ReportStatus(ctx context.Context, userID string, isOnline bool) error {
	if err := s.userRepo.SetOnline(ctx, userID, isOnline); err != nil {
		return err
	}
	s.hub.BroadcastExceptUser(userID, events.UserStatus{UserID: userID, IsOnline: isOnline})
	return nil
}

func (s *presenceService) UserConnected(userID string) {
	s.queue(presenceChange{userID: userID, online: true})
}

func (s *presenceService) UserDisconnected(userID string) {
	s.queue(presenceChange{userID: userID, online: false})
}

func (s *presenceService) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *presenceService) queue(c presenceChange) {
	select {
	case s.changes <- c:
	case <-s.stop:
		s.log.Debug().Str("user_id", c.userID).Msg("presence change after close dropped")
	}
}

func (s *presenceService) run() {
	defer close(s.done)
	for {
		select {
		case c := <-s.changes:
			s.apply(c)
		case <-s.stop:
			// Drain what was queued before Close.
			for {
				select {
				case c := <-s.changes:
					s.apply(c)
				default:
					return
				}
			}
		}
	}
}

func (s *presenceService) apply(c presenceChange) {
	if err := s.userRepo.SetOnline(context.Background(), c.userID, c.online); err != nil {
		s.log.Warn().Err(err).Str("user_id", c.userID).Bool("online", c.online).Msg("failed to store presence")
	}
	if s.pushOnConnect {
		s.hub.BroadcastExceptUser(c.userID, events.UserStatus{UserID: c.userID, IsOnline: c.online})
	}
}
