package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
	"github.com/Jxel117/GastanGO-sub000/internal/usecase"
)

type stubAuthorizer struct {
	principals map[string]*usecase.Principal
	err        error
}

func (s stubAuthorizer) Authorize(_ context.Context, token string) (*usecase.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.principals[token]; ok {
		return p, nil
	}
	return nil, domain.ErrUnauthorized
}

func handleWith(t *testing.T, auth Authorizer, data []byte) authorizeResponse {
	t.Helper()
	handler := NewAuthorizeHandler(auth)
	var captured authorizeResponse
	handler.respondFn = func(_ *nats.Msg, resp authorizeResponse) { captured = resp }
	handler.handle(&nats.Msg{Data: data})
	return captured
}

func TestAuthorizeHandlerSuccess(t *testing.T) {
	auth := stubAuthorizer{principals: map[string]*usecase.Principal{
		"good": {IdentityID: "id-1", Roles: []string{"user"}},
	}}
	payload, _ := json.Marshal(authorizeRequest{Token: "good"})
	resp := handleWith(t, auth, payload)

	if !resp.OK || resp.IdentityID != "id-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Roles) != 1 || resp.Roles[0] != "user" {
		t.Fatalf("roles not propagated: %+v", resp.Roles)
	}
}

func TestAuthorizeHandlerUnauthorized(t *testing.T) {
	payload, _ := json.Marshal(authorizeRequest{Token: "revoked"})
	resp := handleWith(t, stubAuthorizer{}, payload)

	if resp.OK || resp.Error != "unauthorized" {
		t.Fatalf("expected unauthorized, got %+v", resp)
	}
}

func TestAuthorizeHandlerInternalError(t *testing.T) {
	payload, _ := json.Marshal(authorizeRequest{Token: "any"})
	resp := handleWith(t, stubAuthorizer{err: errors.Join(domain.ErrUnexpected, errors.New("db down"))}, payload)

	if resp.OK || resp.Error != "internal" {
		t.Fatalf("expected internal, got %+v", resp)
	}
}

func TestAuthorizeHandlerInvalidPayload(t *testing.T) {
	resp := handleWith(t, stubAuthorizer{}, []byte("{not json"))

	if resp.OK || resp.Error != "invalid_payload" {
		t.Fatalf("expected invalid_payload, got %+v", resp)
	}
}

func TestSubscribeRequiresConnection(t *testing.T) {
	if _, err := NewAuthorizeHandler(stubAuthorizer{}).Subscribe(nil, "auth.authorize", "q"); err == nil {
		t.Fatalf("expected error for nil connection")
	}
}

func TestMailPublisherRequiresConnection(t *testing.T) {
	p := NewMailPublisher(nil, "mail.send")
	if err := p.SendWelcomeEmail(context.Background(), "a@example.com", "alice"); err == nil {
		t.Fatalf("expected error for nil connection")
	}
}
