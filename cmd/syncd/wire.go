package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xelth-com/bizsync/internal/config"
	"github.com/xelth-com/bizsync/internal/database"
	"github.com/xelth-com/bizsync/internal/models"
	"github.com/xelth-com/bizsync/internal/notify"
	"github.com/xelth-com/bizsync/internal/remote"
	"github.com/xelth-com/bizsync/internal/remote/odoo"
	"github.com/xelth-com/bizsync/internal/remote/rest"
	"github.com/xelth-com/bizsync/internal/sync"
)

// app holds everything a command needs
type app struct {
	cfg     *config.Config
	syncCfg *config.SyncConfig
	log     zerolog.Logger

	db     *database.DB
	queue  *sync.GormQueue
	meta   *sync.MetadataManager
	orch   *sync.Orchestrator
	hub    *notify.Hub
	conn   *sync.ConnectionManager
	engine *sync.Engine
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// wire opens the cache and builds the sync core for the configured organization
func wire(cfg *config.Config, syncCfg *config.SyncConfig, log zerolog.Logger) (*app, error) {
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	queue := sync.NewGormQueue(db.DB)
	meta := sync.NewMetadataManager(db.DB)

	client := rest.NewHTTPClient(cfg.Remote.Timeout)
	var signer *rest.TokenSigner
	if cfg.Remote.TokenSecret != "" {
		signer = &rest.TokenSigner{
			DeviceID: cfg.Remote.DeviceID,
			Secret:   cfg.Remote.TokenSecret,
			TTL:      cfg.Remote.TokenTTL,
		}
	}
	base := cfg.Remote.BaseURL

	var customers remote.Gateway[remote.Customer] = rest.New[remote.Customer](base, models.EntityTypeCustomer, client, signer)
	if o := cfg.Remote.Odoo; o.URL != "" {
		log.Info().Str("url", o.URL).Str("db", o.Database).Msg("customers replay against Odoo")
		customers = odoo.NewCustomerGateway(odoo.NewClient(o.URL, o.Database, o.Username, o.Password))
	}

	opts := sync.ServiceOptions{
		MaxFailedAttempts: syncCfg.MaxFailedAttempts,
		PruneOnPull:       syncCfg.PruneOnPull,
		Logger:            log,
	}
	services := []sync.EntitySyncService{
		sync.NewCustomerSync(customers, sync.NewGormStore[models.Customer](db.DB), queue, opts),
		sync.NewStaffSync(rest.New[remote.StaffMember](base, models.EntityTypeStaff, client, signer),
			sync.NewGormStore[models.StaffMember](db.DB), queue, opts),
		sync.NewStockSync(rest.New[remote.StockItem](base, models.EntityTypeStock, client, signer),
			sync.NewGormStore[models.StockItem](db.DB), queue, opts),
		sync.NewBillingSync(rest.New[remote.Billing](base, models.EntityTypeBilling, client, signer),
			sync.NewGormStore[models.Billing](db.DB), queue, opts),
		sync.NewTransactionSync(rest.New[remote.Transaction](base, models.EntityTypeTransaction, client, signer),
			sync.NewGormStore[models.Transaction](db.DB), queue, opts),
		sync.NewSessionSync(rest.NewSessionGateway(base, client, signer),
			sync.NewGormStore[models.TeachingSession](db.DB), queue, opts),
		sync.NewAttendanceSync(rest.New[remote.Attendance](base, models.EntityTypeAttendance, client, signer),
			sync.NewGormStore[models.Attendance](db.DB), queue, opts),
	}

	order := make([]sync.EntityType, 0, len(syncCfg.PushOrder))
	for _, e := range syncCfg.PushOrder {
		order = append(order, sync.EntityType(e))
	}

	hub := notify.NewHub(cfg.Remote.TokenSecret, log)
	orch, err := sync.NewOrchestrator(order, services, queue, meta, sync.OrchestratorOptions{
		BatchSize:      syncCfg.BatchSize,
		PullTimeout:    seconds(syncCfg.PullTimeout),
		MetadataMaxAge: seconds(syncCfg.MetadataMaxAge),
		Notifier:       hub,
		Logger:         log,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	conn := sync.NewConnectionManager(syncCfg.Routes, seconds(syncCfg.HealthCheckInterval), log)

	return &app{
		cfg:     cfg,
		syncCfg: syncCfg,
		log:     log,
		db:      db,
		queue:   queue,
		meta:    meta,
		orch:    orch,
		hub:     hub,
		conn:    conn,
		engine:  sync.NewEngine(orch, conn, syncCfg, cfg.OrganizationID, log),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
