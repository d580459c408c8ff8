package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/xelth-com/bizsync/internal/remote"
)

// SessionGateway adds the lifecycle endpoints
//
//	POST /orgs/{org}/sessions/{id}/start|end|approve
type SessionGateway struct {
	*Gateway[remote.TeachingSession]
}

var _ remote.SessionGateway = (*SessionGateway)(nil)

// NewSessionGateway creates the teaching-session gateway
func NewSessionGateway(baseURL string, client *http.Client, signer *TokenSigner) *SessionGateway {
	return &SessionGateway{Gateway: New[remote.TeachingSession](baseURL, "sessions", client, signer)}
}

type transitionBody struct {
	At       *time.Time `json:"at,omitempty"`
	Approver string     `json:"approver,omitempty"`
}

func (g *SessionGateway) StartSession(ctx context.Context, org, id string, at time.Time) (remote.TeachingSession, error) {
	return g.transition(ctx, org, id, "start", transitionBody{At: &at})
}

func (g *SessionGateway) EndSession(ctx context.Context, org, id string, at time.Time) (remote.TeachingSession, error) {
	return g.transition(ctx, org, id, "end", transitionBody{At: &at})
}

func (g *SessionGateway) ApproveSession(ctx context.Context, org, id, approver string) (remote.TeachingSession, error) {
	return g.transition(ctx, org, id, "approve", transitionBody{Approver: approver})
}

// transition returns a zero session when the backend answers 204
func (g *SessionGateway) transition(ctx context.Context, org, id, action string, body transitionBody) (remote.TeachingSession, error) {
	var out remote.TeachingSession
	path := g.itemPath(org, id) + "/" + url.PathEscape(action)
	err := g.do(ctx, http.MethodPost, path, org, id, body, &out)
	return out, err
}
