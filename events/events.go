// Package events is the push channel protocol shared by the gateway (ws) and
// the client SDK (client).
//
// Every frame is an Envelope:
//
//	{"op": "post:like", "d": {"postId": "...", "isLiked": true, "likesCount": 4}, "seq": 12}
//
// The set of ops is closed. Each op has exactly one payload type implementing
// Payload, and frames are decoded into those types at the channel boundary
// (Decode), so nothing downstream handles untyped maps.
//
// Events are dirty bits: receivers re-fetch authoritative state instead of
// applying the payload as a delta. Nothing here is persisted or replayed.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akinalp/pulse/models"
)

// Client → gateway ops.
const (
	OpPostCreated    = "post:created"
	OpPostLiked      = "post:liked"
	OpPostDeleted    = "post:deleted"
	OpCommentCreated = "comment:created"
	OpCommentDeleted = "comment:deleted"
	OpTypingStart    = "typing:start"
	OpTypingStop     = "typing:stop"
	OpHeartbeat      = "heartbeat"
)

// Gateway → client ops.
const (
	OpReady          = "ready"
	OpHeartbeatAck   = "heartbeat_ack"
	OpPostNew        = "post:new"
	OpPostLike       = "post:like"
	OpPostRemoved    = "post:removed"
	OpCommentNew     = "comment:new"
	OpCommentRemoved = "comment:removed"
	OpUserTyping     = "user:typing"
	OpUserTypingStop = "user:typing:stop"
	OpUserStatus     = "user:status"
)

var (
	// ErrUnknownOp is returned by Decode for an op outside the protocol.
	ErrUnknownOp = errors.New("unknown op")
	// ErrMalformed is returned by Decode when d does not fit the op's payload.
	ErrMalformed = errors.New("malformed payload")
)

// Envelope is one frame on the wire.
type Envelope struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
}

// Payload is implemented by every event type.
type Payload interface {
	Op() string
}

// validator is implemented by payloads with required fields.
type validator interface {
	validate() error
}

// ---- client → gateway ----

// PostCreated announces a post the sender just created. It carries the
// server's canonical projection.
type PostCreated struct{ models.Post }

// PostLiked announces the server's answer to the sender's like toggle.
type PostLiked struct {
	PostID     string `json:"postId"`
	IsLiked    bool   `json:"isLiked"`
	LikesCount int    `json:"likesCount"`
}

// PostDeleted announces that the sender deleted a post.
type PostDeleted struct {
	PostID string `json:"postId"`
}

// CommentCreated announces a comment the sender just created.
type CommentCreated struct {
	PostID  string         `json:"postId"`
	Comment models.Comment `json:"comment"`
}

// CommentDeleted announces that the sender deleted a comment.
type CommentDeleted struct {
	PostID    string `json:"postId"`
	CommentID string `json:"commentId"`
}

// TypingStart says the sender is writing a comment on PostID.
type TypingStart struct {
	PostID string `json:"postId"`
}

// TypingStop says the sender stopped writing on PostID.
type TypingStop struct {
	PostID string `json:"postId"`
}

// Heartbeat keeps an idle connection alive.
type Heartbeat struct{}

// ---- gateway → client ----

// Ready is the first frame on a joined connection.
type Ready struct {
	ConnID   string `json:"connId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Group    string `json:"group"`
}

// HeartbeatAck answers Heartbeat.
type HeartbeatAck struct{}

// PostNew tells receivers a post was created.
type PostNew struct{ models.Post }

// PostLike tells receivers a like count changed.
type PostLike struct {
	PostID     string `json:"postId"`
	IsLiked    bool   `json:"isLiked"`
	LikesCount int    `json:"likesCount"`
}

// PostRemoved tells receivers a post was deleted.
type PostRemoved struct {
	PostID string `json:"postId"`
}

// CommentNew tells receivers a comment was added to PostID.
type CommentNew struct {
	PostID  string         `json:"postId"`
	Comment models.Comment `json:"comment"`
}

// CommentRemoved tells receivers a comment was deleted from PostID.
type CommentRemoved struct {
	PostID    string `json:"postId"`
	CommentID string `json:"commentId"`
}

// UserTyping tells receivers who is typing where.
type UserTyping struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	PostID   string `json:"postId"`
}

// UserTypingStop clears a UserTyping.
type UserTypingStop struct {
	UserID string `json:"userId"`
	PostID string `json:"postId"`
}

// UserStatus reports an identity's presence.
type UserStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

func (PostCreated) Op() string    { return OpPostCreated }
func (PostLiked) Op() string      { return OpPostLiked }
func (PostDeleted) Op() string    { return OpPostDeleted }
func (CommentCreated) Op() string { return OpCommentCreated }
func (CommentDeleted) Op() string { return OpCommentDeleted }
func (TypingStart) Op() string    { return OpTypingStart }
func (TypingStop) Op() string     { return OpTypingStop }
func (Heartbeat) Op() string      { return OpHeartbeat }
func (Ready) Op() string          { return OpReady }
func (HeartbeatAck) Op() string   { return OpHeartbeatAck }
func (PostNew) Op() string        { return OpPostNew }
func (PostLike) Op() string       { return OpPostLike }
func (PostRemoved) Op() string    { return OpPostRemoved }
func (CommentNew) Op() string     { return OpCommentNew }
func (CommentRemoved) Op() string { return OpCommentRemoved }
func (UserTyping) Op() string     { return OpUserTyping }
func (UserTypingStop) Op() string { return OpUserTypingStop }
func (UserStatus) Op() string     { return OpUserStatus }

func (p PostCreated) validate() error    { return need(p.ID, "id") }
func (p PostLiked) validate() error      { return need(p.PostID, "postId") }
func (p PostDeleted) validate() error    { return need(p.PostID, "postId") }
func (p CommentCreated) validate() error { return need(p.PostID, "postId") }
func (p CommentDeleted) validate() error { return need(p.PostID, "postId", p.CommentID, "commentId") }
func (p TypingStart) validate() error    { return need(p.PostID, "postId") }
func (p TypingStop) validate() error     { return need(p.PostID, "postId") }
func (p PostNew) validate() error        { return need(p.ID, "id") }
func (p PostLike) validate() error       { return need(p.PostID, "postId") }
func (p PostRemoved) validate() error    { return need(p.PostID, "postId") }
func (p CommentNew) validate() error     { return need(p.PostID, "postId") }
func (p CommentRemoved) validate() error { return need(p.PostID, "postId", p.CommentID, "commentId") }
func (p UserTyping) validate() error     { return need(p.UserID, "userId", p.PostID, "postId") }
func (p UserTypingStop) validate() error { return need(p.UserID, "userId", p.PostID, "postId") }
func (p UserStatus) validate() error     { return need(p.UserID, "userId") }

// need takes (value, name) pairs and fails on the first empty value.
func need(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i] == "" {
			return fmt.Errorf("%s is required", pairs[i+1])
		}
	}
	return nil
}

// decoders maps every op to a function decoding its payload.
var decoders = map[string]func(json.RawMessage) (Payload, error){
	OpPostCreated:    decodeAs[PostCreated],
	OpPostLiked:      decodeAs[PostLiked],
	OpPostDeleted:    decodeAs[PostDeleted],
	OpCommentCreated: decodeAs[CommentCreated],
	OpCommentDeleted: decodeAs[CommentDeleted],
	OpTypingStart:    decodeAs[TypingStart],
	OpTypingStop:     decodeAs[TypingStop],
	OpHeartbeat:      decodeAs[Heartbeat],
	OpReady:          decodeAs[Ready],
	OpHeartbeatAck:   decodeAs[HeartbeatAck],
	OpPostNew:        decodeAs[PostNew],
	OpPostLike:       decodeAs[PostLike],
	OpPostRemoved:    decodeAs[PostRemoved],
	OpCommentNew:     decodeAs[CommentNew],
	OpCommentRemoved: decodeAs[CommentRemoved],
	OpUserTyping:     decodeAs[UserTyping],
	OpUserTypingStop: decodeAs[UserTypingStop],
	OpUserStatus:     decodeAs[UserStatus],
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	if v, ok := any(p).(validator); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Decode turns an envelope into its typed payload.
func Decode(env Envelope) (Payload, error) {
	dec, ok := decoders[env.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, env.Op)
	}
	p, err := dec(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Op, err)
	}
	return p, nil
}

// DecodeFrame parses a raw frame and decodes its payload.
func DecodeFrame(frame []byte) (Envelope, Payload, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p, err := Decode(env)
	return env, p, err
}

// Encode renders p as a frame with the given sequence number (0 omits it).
func Encode(p Payload, seq int64) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Op(), err)
	}
	if string(data) == "{}" {
		data = nil
	}
	return json.Marshal(Envelope{Op: p.Op(), Data: data, Seq: seq})
}

// Known reports whether op belongs to the protocol.
func Known(op string) bool {
	_, ok := decoders[op]
	return ok
}
