package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/xelth-com/bizsync/internal/remote"
)

const maxErrorBody = 4 << 10

// Gateway replays one resource collection against the JSON backend.
//
//	POST   /orgs/{org}/{resource}
//	PUT    /orgs/{org}/{resource}/{id}
//	DELETE /orgs/{org}/{resource}/{id}
//	GET    /orgs/{org}/{resource}
type Gateway[R remote.Record] struct {
	baseURL  string
	resource string
	client   *http.Client
	signer   *TokenSigner
}

var _ remote.Gateway[remote.Customer] = (*Gateway[remote.Customer])(nil)

// New creates a gateway for resource. signer may be nil for unauthenticated backends.
func New[R remote.Record](baseURL, resource string, client *http.Client, signer *TokenSigner) *Gateway[R] {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Gateway[R]{
		baseURL:  strings.TrimRight(baseURL, "/"),
		resource: resource,
		client:   client,
		signer:   signer,
	}
}

func (g *Gateway[R]) Create(ctx context.Context, org string, rec R) (R, error) {
	out := rec
	err := g.do(ctx, http.MethodPost, g.collectionPath(org), org, rec.RecordID(), rec, &out)
	return out, err
}

func (g *Gateway[R]) Update(ctx context.Context, org string, rec R) (R, error) {
	out := rec
	err := g.do(ctx, http.MethodPut, g.itemPath(org, rec.RecordID()), org, rec.RecordID(), rec, &out)
	return out, err
}

func (g *Gateway[R]) Delete(ctx context.Context, org, id string) error {
	return g.do(ctx, http.MethodDelete, g.itemPath(org, id), org, id, nil, nil)
}

func (g *Gateway[R]) ListAll(ctx context.Context, org string) ([]R, error) {
	var out []R
	if err := g.do(ctx, http.MethodGet, g.collectionPath(org), org, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway[R]) collectionPath(org string) string {
	return fmt.Sprintf("/orgs/%s/%s", url.PathEscape(org), g.resource)
}

func (g *Gateway[R]) itemPath(org, id string) string {
	return g.collectionPath(org) + "/" + url.PathEscape(id)
}

// do sends one request and maps the response onto the remote error types.
// A 204 or empty body leaves out untouched.
func (g *Gateway[R]) do(ctx context.Context, method, path, org, id string, body, out interface{}) error {
	op := method + " " + g.resource

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.signer != nil {
		token, err := g.signer.Sign(org)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return &remote.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &remote.NotFoundError{Resource: g.resource, ID: id}
	case resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusConflict ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		return &remote.ValidationError{Op: op, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &remote.ServerError{Op: op, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &remote.ServerError{Op: op, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &remote.TransportError{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &remote.ServerError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

func readMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
