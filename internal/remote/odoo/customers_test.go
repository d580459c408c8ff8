package odoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/rpc"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/kolo/xmlrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/bizsync/internal/remote"
)

var (
	refMember  = regexp.MustCompile(`<name>ref</name>\s*<value>\s*(?:<string>)?([^<]*)`)
	nameMember = regexp.MustCompile(`<name>name</name>\s*<value>\s*(?:<string>)?([^<]*)`)
)

// fakeOdoo answers the handful of execute_kw calls the gateway makes
type fakeOdoo struct {
	mu       sync.Mutex
	partners map[string]string // ref -> name
	calls    []string
	fault    bool
}

func (f *fakeOdoo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	body := string(data)

	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "text/xml")

	has := func(s string) bool { return strings.Contains(body, ">"+s+"<") }

	switch {
	case has("authenticate"):
		f.calls = append(f.calls, "authenticate")
		respond(w, "<int>7</int>")
	case f.fault:
		fmt.Fprint(w, `<?xml version="1.0"?><methodResponse><fault><value><struct>`+
			`<member><name>faultCode</name><value><int>2</int></value></member>`+
			`<member><name>faultString</name><value><string>access denied</string></value></member>`+
			`</struct></value></fault></methodResponse>`)
	case has("search_read"):
		f.calls = append(f.calls, "search_read")
		var rows strings.Builder
		for ref, name := range f.partners {
			rows.WriteString("<value><struct>")
			rows.WriteString(member("ref", "<string>"+ref+"</string>"))
			rows.WriteString(member("name", "<string>"+name+"</string>"))
			rows.WriteString(member("phone", "<boolean>0</boolean>"))
			rows.WriteString(member("credit", "<double>12.5</double>"))
			rows.WriteString(member("write_date", "<string>2026-02-01 10:00:00</string>"))
			rows.WriteString("</struct></value>")
		}
		respond(w, "<array><data>"+rows.String()+"</data></array>")
	case has("search"):
		f.calls = append(f.calls, "search")
		ids := ""
		for ref := range f.partners {
			if has(ref) {
				ids = "<value><int>42</int></value>"
			}
		}
		respond(w, "<array><data>"+ids+"</data></array>")
	case has("create"):
		f.calls = append(f.calls, "create")
		ref := refMember.FindStringSubmatch(body)
		name := nameMember.FindStringSubmatch(body)
		if ref == nil || name == nil {
			http.Error(w, "bad create", http.StatusBadRequest)
			return
		}
		f.partners[ref[1]] = name[1]
		respond(w, "<int>42</int>")
	case has("write"):
		f.calls = append(f.calls, "write")
		respond(w, "<boolean>1</boolean>")
	case has("unlink"):
		f.calls = append(f.calls, "unlink")
		for ref := range f.partners {
			delete(f.partners, ref)
		}
		respond(w, "<boolean>1</boolean>")
	default:
		http.Error(w, "unexpected call", http.StatusBadRequest)
	}
}

func respond(w io.Writer, value string) {
	fmt.Fprintf(w, `<?xml version="1.0"?><methodResponse><params><param><value>%s</value></param></params></methodResponse>`, value)
}

func member(name, value string) string {
	return "<member><name>" + name + "</name><value>" + value + "</value></member>"
}

func newTestGateway(t *testing.T) (*fakeOdoo, *CustomerGateway) {
	t.Helper()
	fake := &fakeOdoo{partners: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, NewCustomerGateway(NewClient(srv.URL, "db", "admin", "secret"))
}

func TestCustomerGateway_Lifecycle(t *testing.T) {
	fake, gw := newTestGateway(t)
	ctx := context.Background()

	_, err := gw.Create(ctx, "org-1", remote.Customer{ID: "c1", Name: "Ravi"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", fake.partners["c1"])

	list, err := gw.ListAll(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, "", list[0].Phone, "false decodes as empty")
	assert.Equal(t, 12.5, list[0].OutstandingBalance)
	assert.False(t, list[0].UpdatedAt.IsZero())

	_, err = gw.Update(ctx, "org-1", remote.Customer{ID: "c1", Name: "Ravi S"})
	require.NoError(t, err)

	require.NoError(t, gw.Delete(ctx, "org-1", "c1"))

	err = gw.Delete(ctx, "org-1", "c1")
	var nf *remote.NotFoundError
	assert.True(t, errors.As(err, &nf), "got %v", err)

	assert.Equal(t, 1, countCalls(fake.calls, "authenticate"), "uid is cached")
}

func TestCustomerGateway_FaultIsServerError(t *testing.T) {
	fake, gw := newTestGateway(t)
	fake.fault = true

	_, err := gw.Create(context.Background(), "org-1", remote.Customer{ID: "c1", Name: "x"})
	var se *remote.ServerError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, 2, se.StatusCode)
	assert.Equal(t, "access denied", se.Message)
}

func TestAsFault(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		ok      bool
		code    int
		message string
	}{
		{"rpc server error", rpc.ServerError("Fault(2): access denied"), true, 2, "access denied"},
		{"wrapped", fmt.Errorf("execute_kw: %w", rpc.ServerError("Fault(-1): bad\nvalue")), true, -1, "bad\nvalue"},
		{"unformatted server error", rpc.ServerError("boom"), true, 0, "boom"},
		{"typed fault", xmlrpc.FaultError{Code: 3, String: "denied"}, true, 3, "denied"},
		{"network", errors.New("connection refused"), false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fault, ok := asFault(tt.err)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.code, fault.Code)
			assert.Equal(t, tt.message, fault.String)
		})
	}
}

func TestCustomerGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := NewCustomerGateway(NewClient(url, "db", "admin", "secret"))
	_, err := gw.ListAll(context.Background(), "org-1")
	var te *remote.TransportError
	assert.True(t, errors.As(err, &te), "got %v", err)
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}
