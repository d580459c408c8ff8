package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/xelth-com/bizsync/internal/config"
	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/remote"
	"github.com/xelth-com/bizsync/internal/remote/rest"
	"github.com/xelth-com/bizsync/internal/sync"
)

const testOrg = "org-1"

// backend echoes writes and lists nothing
type backend struct {
	mu    gosync.Mutex
	calls []string
	auth  []string
}

func (b *backend) handler() http.Handler {
	r := mux.NewRouter()
	record := func(req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls = append(b.calls, req.Method+" "+req.URL.Path)
		b.auth = append(b.auth, req.Header.Get("Authorization"))
	}
	r.HandleFunc("/orgs/{org}/{resource}", func(w http.ResponseWriter, req *http.Request) {
		record(req)
		w.Header().Set("Content-Type", "application/json")
		if req.Method == http.MethodGet {
			w.Write([]byte("[]"))
			return
		}
		io.Copy(w, req.Body)
	}).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/orgs/{org}/{resource}/{id}", func(w http.ResponseWriter, req *http.Request) {
		record(req)
		w.Header().Set("Content-Type", "application/json")
		io.Copy(w, req.Body)
	}).Methods(http.MethodPut, http.MethodDelete)
	return r
}

func (b *backend) snapshot() ([]string, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...), append([]string(nil), b.auth...)
}

func testConfig(t *testing.T, baseURL string) (*config.Config, *config.SyncConfig) {
	t.Helper()
	t.Setenv("SYNC_CONFIG_PATH", "")
	t.Setenv("REMOTE_BASE_URL", baseURL)

	cfg := &config.Config{
		OrganizationID: testOrg,
		NotifyAddr:     "127.0.0.1:0",
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "cache.db"),
		},
		Remote: config.RemoteConfig{
			BaseURL:  baseURL,
			DeviceID: "till-1",
			Timeout:  5 * time.Second,
		},
	}
	syncCfg, err := config.LoadSyncConfig()
	require.NoError(t, err)
	return cfg, syncCfg
}

func recordCustomer(t *testing.T, a *app, id, name string) {
	t.Helper()
	rec := remote.Customer{ID: id, Name: name, UpdatedAt: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	local := models.Customer{ID: id, OrganizationID: testOrg, Name: name, UpdatedAt: rec.UpdatedAt}
	_, err := sync.RecordWrite(context.Background(), a.queue, sync.NewGormStore[models.Customer](a.db.DB),
		sync.OpCreate, testOrg, local, rec)
	require.NoError(t, err)
}

func TestWire_PushOrderFollowsConfig(t *testing.T) {
	srv := httptest.NewServer((&backend{}).handler())
	defer srv.Close()

	cfg, syncCfg := testConfig(t, srv.URL)
	a, err := wire(cfg, syncCfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	want := make([]sync.EntityType, 0, len(config.DefaultPushOrder))
	for _, e := range config.DefaultPushOrder {
		want = append(want, sync.EntityType(e))
	}
	assert.Equal(t, want, a.orch.Order())
	assert.False(t, a.engine.Status().IsRunning)
}

func TestWire_PushesThroughRestBackend(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"unauthenticated backend", ""},
		{"device token", "wire-secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &backend{}
			srv := httptest.NewServer(be.handler())
			defer srv.Close()

			cfg, syncCfg := testConfig(t, srv.URL)
			cfg.Remote.TokenSecret = tt.secret
			a, err := wire(cfg, syncCfg, zerolog.Nop())
			require.NoError(t, err)
			defer a.Close()

			recordCustomer(t, a, "c1", "Meera")

			report, err := a.orch.Push(context.Background(), testOrg)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Totals().Applied)

			calls, auth := be.snapshot()
			require.Equal(t, []string{"POST /orgs/org-1/customers"}, calls)
			if tt.secret == "" {
				assert.Empty(t, auth[0])
			} else {
				require.True(t, strings.HasPrefix(auth[0], "Bearer "))
				claims, err := rest.ValidateDeviceToken(strings.TrimPrefix(auth[0], "Bearer "), tt.secret)
				require.NoError(t, err)
				assert.Equal(t, testOrg, claims.Org)
				assert.Equal(t, "till-1", claims.Device)
			}

			c, ok, err := sync.NewGormStore[models.Customer](a.db.DB).Get(context.Background(), "c1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, models.SyncStatusSynced, c.SyncStatus)

			require.NoError(t, a.orch.PullAllInParallel(context.Background(), testOrg))
		})
	}
}

func TestWire_OdooCustomers(t *testing.T) {
	srv := httptest.NewServer((&backend{}).handler())
	defer srv.Close()

	cfg, syncCfg := testConfig(t, srv.URL)
	cfg.Remote.Odoo = config.OdooConfig{URL: "http://odoo.invalid", Database: testOrg, Username: "admin", Password: "x"}
	a, err := wire(cfg, syncCfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.orch.Order(), sync.EntityCustomer)
}

func TestWire_BadDriver(t *testing.T) {
	cfg, syncCfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Database.Driver = "mysql"
	_, err := wire(cfg, syncCfg, zerolog.Nop())
	assert.Error(t, err)
}

// runCLI executes the root command the way main does
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	orgFlag = ""
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		orgFlag = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_PendingAndDiscard(t *testing.T) {
	srv := httptest.NewServer((&backend{}).handler())
	defer srv.Close()

	cfg, syncCfg := testConfig(t, srv.URL)
	t.Setenv("ORGANIZATION_ID", testOrg)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", cfg.Database.Path)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", "")

	a, err := wire(cfg, syncCfg, zerolog.Nop())
	require.NoError(t, err)
	broken := &models.PendingOperation{
		EntityType: string(sync.EntityCustomer), EntityID: "c9", OperationType: "MERGE",
		OrganizationID: testOrg, Payload: datatypes.JSON(`{}`),
	}
	require.NoError(t, a.queue.Enqueue(context.Background(), broken))
	require.NoError(t, a.Close())

	out, err := runCLI(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "MERGE")
	assert.Contains(t, out, "c9")

	_, err = runCLI(t, "discard", "not-a-number")
	assert.Error(t, err)

	_, err = runCLI(t, "--org", "org-2", "discard", strconv.FormatUint(broken.ID, 10))
	assert.ErrorIs(t, err, sync.ErrOperationNotFound, "another organization cannot discard it")

	out, err = runCLI(t, "discard", strconv.FormatUint(broken.ID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "discarded operation")

	out, err = runCLI(t, "pending")
	require.NoError(t, err)
	assert.NotContains(t, out, "c9")
}

func TestCLI_StatusAndVersion(t *testing.T) {
	srv := httptest.NewServer((&backend{}).handler())
	defer srv.Close()

	cfg, _ := testConfig(t, srv.URL)
	t.Setenv("ORGANIZATION_ID", testOrg)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", cfg.Database.Path)
	t.Setenv("LOG_LEVEL", "error")

	out, err := runCLI(t, "status")
	require.NoError(t, err)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, testOrg, status["organization"])
	assert.Len(t, status["pushOrder"], len(config.DefaultPushOrder))

	out, err = runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)
}
