package odoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/rpc"
	"regexp"
	"strconv"
	gosync "sync"

	"github.com/kolo/xmlrpc"

	"github.com/xelth-com/bizsync/internal/remote"
)

// Client represents an Odoo XML-RPC client
type Client struct {
	URL       string
	Database  string
	Username  string
	Password  string
	CommonURL string
	ObjectURL string
	Transport http.RoundTripper

	mu  gosync.Mutex
	uid int
}

// NewClient creates a new Odoo client
func NewClient(url, db, username, password string) *Client {
	return &Client{
		URL:       url,
		Database:  db,
		Username:  username,
		Password:  password,
		CommonURL: fmt.Sprintf("%s/xmlrpc/2/common", url),
		ObjectURL: fmt.Sprintf("%s/xmlrpc/2/object", url),
	}
}

// Authenticate authenticates with Odoo and caches the user ID
func (c *Client) Authenticate(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}

	var uid int
	args := []interface{}{c.Database, c.Username, c.Password, make(map[string]interface{})}
	if err := c.call(ctx, c.CommonURL, "authenticate", args, &uid); err != nil {
		return 0, err
	}
	if uid == 0 {
		return 0, &remote.ValidationError{Op: "authenticate", Message: "invalid Odoo credentials"}
	}
	c.uid = uid
	return uid, nil
}

// ExecuteKw runs model.method with positional args and keyword args
func (c *Client) ExecuteKw(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}, result interface{}) error {
	uid, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	params := []interface{}{c.Database, uid, c.Password, model, method, args, kwargs}
	return c.call(ctx, c.ObjectURL, "execute_kw", params, result)
}

// Search performs a generic search operation and returns IDs
func (c *Client) Search(ctx context.Context, model string, domain []interface{}, limit int) ([]int64, error) {
	var ids []int64
	kwargs := map[string]interface{}{}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	if err := c.ExecuteKw(ctx, model, "search", []interface{}{domain}, kwargs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SearchRead performs a generic search_read operation and decodes the rows
// into result through JSON, so result may be a slice of tagged structs.
func (c *Client) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, result interface{}) error {
	var raw []map[string]interface{}
	kwargs := map[string]interface{}{"fields": fields}
	if err := c.ExecuteKw(ctx, model, "search_read", []interface{}{domain}, kwargs, &raw); err != nil {
		return err
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal raw result: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to unmarshal into target: %w", err)
	}
	return nil
}

// Create inserts one record and returns its Odoo id
func (c *Client) Create(ctx context.Context, model string, values map[string]interface{}) (int64, error) {
	var id int64
	if err := c.ExecuteKw(ctx, model, "create", []interface{}{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Write updates the given records
func (c *Client) Write(ctx context.Context, model string, ids []int64, values map[string]interface{}) error {
	var ok bool
	return c.ExecuteKw(ctx, model, "write", []interface{}{ids, values}, nil, &ok)
}

// Unlink deletes the given records
func (c *Client) Unlink(ctx context.Context, model string, ids []int64) error {
	var ok bool
	return c.ExecuteKw(ctx, model, "unlink", []interface{}{ids}, nil, &ok)
}

// call performs one XML-RPC round trip; faults become ServerError and
// everything else that fails before a response becomes TransportError.
func (c *Client) call(ctx context.Context, url, method string, args interface{}, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := xmlrpc.NewClient(url, c.Transport)
	if err != nil {
		return &remote.TransportError{Op: method, Err: err}
	}
	defer client.Close()

	done := make(chan error, 1)
	go func() { done <- client.Call(method, args, reply) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err == nil {
			return nil
		}
		if fault, ok := asFault(err); ok {
			return &remote.ServerError{Op: method, StatusCode: fault.Code, Message: fault.String}
		}
		return &remote.TransportError{Op: method, Err: err}
	}
}

var faultText = regexp.MustCompile(`(?s)^Fault\((-?\d+)\): (.*)$`)

// asFault recovers an XML-RPC fault. The client runs on net/rpc, which
// flattens the fault into an rpc.ServerError string.
func asFault(err error) (xmlrpc.FaultError, bool) {
	var fault xmlrpc.FaultError
	if errors.As(err, &fault) {
		return fault, true
	}
	var se rpc.ServerError
	if !errors.As(err, &se) {
		return fault, false
	}
	m := faultText.FindStringSubmatch(string(se))
	if m == nil {
		return xmlrpc.FaultError{String: string(se)}, true
	}
	code, _ := strconv.Atoi(m[1])
	return xmlrpc.FaultError{Code: code, String: m[2]}, true
}
