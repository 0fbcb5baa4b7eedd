package ws

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/akinalp/pulse/models"
	"github.com/akinalp/pulse/pkg"
	"github.com/akinalp/pulse/pkg/logger"
	"github.com/akinalp/pulse/pkg/metrics"
)

// TokenValidator resolves a credential to its claims. services.AuthService
// satisfies it; ws declares its own narrow interface so it never imports
// services (services already imports ws for EventPublisher).
type TokenValidator interface {
	ValidateAccessToken(token string) (*models.TokenClaims, error)
}

// Handler upgrades authenticated requests on GET /ws.
type Handler struct {
	hub        *Hub
	validator  TokenValidator
	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewHandler builds the gateway endpoint. sendBuffer <= 0 uses DefaultSendBuffer.
func NewHandler(hub *Hub, validator TokenValidator, sendBuffer int) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Handler{
		hub:        hub,
		validator:  validator,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The credential, not the origin, gates access. Browsers cannot
			// attach headers to an upgrade, so the token may arrive in the query.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection runs the handshake. The credential is validated before the
// upgrade: a missing, invalid or expired token is answered with 401 and the
// connection never joins the group.
//
// The credential is taken from "Authorization: Bearer <token>" or, for
// browsers, from the "token" query parameter.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("ws")

	token := credentialFrom(r)
	if token == "" {
		metrics.HandshakeFailures.WithLabelValues("missing").Inc()
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "missing credential")
		return
	}

	claims, err := h.validator.ValidateAccessToken(token)
	if err != nil {
		metrics.HandshakeFailures.WithLabelValues("invalid").Inc()
		log.Debug().Err(err).Msg("handshake rejected")
		if !errors.Is(err, pkg.ErrUnauthorized) {
			err = pkg.ErrUnauthorized
		}
		pkg.Error(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.HandshakeFailures.WithLabelValues("upgrade").Inc()
		log.Warn().Err(err).Str("user_id", claims.UserID).Msg("upgrade failed")
		return
	}

	connID := uuid.NewString()
	client := &Client{
		hub:      h.hub,
		conn:     conn,
		connID:   connID,
		userID:   claims.UserID,
		username: claims.Username,
		send:     make(chan []byte, h.sendBuffer),
		log:      logger.WithUserID(logger.WithConnID(log, connID), claims.UserID),
	}
	client.setState(StateAuthenticated)

	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump() // blocks until the connection ends
}

func credentialFrom(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
