package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	nats "github.com/nats-io/nats.go"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/usecase"
)

// Authorizer is the slice of usecase.Service the handler needs.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*usecase.Principal, error)
}

// AuthorizeHandler answers authorize requests from other GastanGO services so
// they apply the same revocation-aware check as the HTTP middleware.
type AuthorizeHandler struct {
	auth      Authorizer
	timeout   time.Duration
	respondFn func(msg *nats.Msg, resp authorizeResponse)
}

type authorizeRequest struct {
	Token string `json:"token"`
}

type authorizeResponse struct {
	OK         bool     `json:"ok"`
	IdentityID string   `json:"identity_id,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func NewAuthorizeHandler(auth Authorizer) *AuthorizeHandler {
	return &AuthorizeHandler{auth: auth, timeout: 3 * time.Second, respondFn: respond}
}

func (h *AuthorizeHandler) Subscribe(conn *nats.Conn, subject, queue string) (*nats.Subscription, error) {
	if conn == nil {
		return nil, errors.New("nats connection is nil")
	}
	return conn.QueueSubscribe(subject, queue, h.handle)
}

func (h *AuthorizeHandler) handle(msg *nats.Msg) {
	var req authorizeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		h.respondFn(msg, authorizeResponse{OK: false, Error: "invalid_payload"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	principal, err := h.auth.Authorize(ctx, req.Token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			h.respondFn(msg, authorizeResponse{OK: false, Error: "unauthorized"})
			return
		}
		h.respondFn(msg, authorizeResponse{OK: false, Error: "internal"})
		return
	}
	h.respondFn(msg, authorizeResponse{OK: true, IdentityID: principal.IdentityID, Roles: principal.Roles})
}

func respond(msg *nats.Msg, resp authorizeResponse) {
	data, _ := json.Marshal(resp)
	_ = msg.Respond(data)
}
