package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/xelth-com/bizsync/internal/buildinfo"
	"github.com/xelth-com/bizsync/internal/config"
	"github.com/xelth-com/bizsync/internal/logging"
	"github.com/xelth-com/bizsync/internal/sync"
)

var orgFlag string

var rootCmd = &cobra.Command{
	Use:           "syncd",
	Short:         "Offline-first sync daemon for the business cache",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync engine and the device notification hub",
	Long: `Run the background sync engine for one organization.

The engine pushes queued local changes on startup, on a timer, after the
backend becomes reachable again and on request. Other devices of the
organization are told about finished push cycles over /ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeAll, err := setup()
		if err != nil {
			return err
		}
		defer closeAll()
		return serve(a)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Replay the pending operation queue once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeAll, err := setup()
		if err != nil {
			return err
		}
		defer closeAll()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := a.orch.Push(ctx, a.cfg.OrganizationID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var coldOnly bool

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Refresh the local cache from the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeAll, err := setup()
		if err != nil {
			return err
		}
		defer closeAll()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if coldOnly {
			pulled, err := a.orch.ColdStart(ctx, a.cfg.OrganizationID)
			fmt.Fprintf(cmd.OutOrStdout(), "pulled: %v\n", pulled)
			return err
		}
		return a.orch.PullAllInParallel(ctx, a.cfg.OrganizationID)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued operations and the last pull of every entity type",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeAll, err := setup()
		if err != nil {
			return err
		}
		defer closeAll()

		ctx := cmd.Context()
		queue, err := a.queue.Stats(ctx, a.cfg.OrganizationID)
		if err != nil {
			return err
		}
		meta, err := a.meta.List(ctx, a.cfg.OrganizationID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"organization": a.cfg.OrganizationID,
			"pushOrder":    a.orch.Order(),
			"queue":        queue,
			"pulls":        meta,
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear failure counters so failed records are retried",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeAll, err := setup()
		if err != nil {
			return err
		}
		defer closeAll()

		n, err := a.orch.ResetFailures(cmd.Context(), a.cfg.OrganizationID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %d operations\n", n)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List queued operations, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeAll, err := setup()
		if err != nil {
			return err
		}
		defer closeAll()

		ops, err := a.queue.NextBatch(cmd.Context(), sync.BatchFilter{OrganizationID: a.cfg.OrganizationID})
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENTITY\tRECORD\tOP\tATTEMPTS\tQUEUED")
		for _, op := range ops {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
				op.ID, op.EntityType, op.EntityID, op.OperationType, op.FailedAttempts, op.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard <operation-id>",
	Short: "Drop a queued operation that can never replay",
	Long: `Drop one queued operation without sending it.

Operations the backend can never accept as stored (an unreadable payload,
an unknown operation kind) stay queued and hold back the later changes of
their record. Discarding one lets the rest of the record sync again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid operation id %q", args[0])
		}

		a, closeAll, err := setup()
		if err != nil {
			return err
		}
		defer closeAll()

		op, err := a.orch.Discard(cmd.Context(), a.cfg.OrganizationID, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "discarded operation %d (%s %s %s)\n", op.ID, op.OperationType, op.EntityType, op.EntityID)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), buildinfo.Get())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&orgFlag, "org", "", "organization id (overrides ORGANIZATION_ID)")
	pullCmd.Flags().BoolVar(&coldOnly, "cold", false, "only pull entity types with nothing cached")
	rootCmd.AddCommand(runCmd, pushCmd, pullCmd, statusCmd, pendingCmd, discardCmd, resetCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration, logging and the sync core
func setup() (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if orgFlag != "" {
		cfg.OrganizationID = orgFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	syncCfg, err := config.LoadSyncConfig()
	if err != nil {
		logCloser.Close()
		return nil, nil, fmt.Errorf("load sync configuration: %w", err)
	}

	a, err := wire(cfg, syncCfg, log)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}

	closeAll := func() {
		log.Info().Msg("🛑 Closing database connection...")
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("database close error")
		}
		logCloser.Close()
	}
	return a, closeAll, nil
}

// serve runs the engine and the hub until SIGINT or SIGTERM
func serve(a *app) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.hub.Run(ctx)

	if err := a.engine.Start(ctx); err != nil {
		a.log.Warn().Err(err).Msg("⚠️ Sync Engine not started")
	}

	router := mux.NewRouter()
	a.hub.Routes(router)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		printJSON(w, map[string]interface{}{
			"build":  buildinfo.Get(),
			"engine": a.engine.Status(),
		})
	}).Methods(http.MethodGet)
	router.HandleFunc("/sync/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind := sync.SyncKind(mux.Vars(r)["kind"])
		if !a.engine.RequestSync(kind) {
			http.Error(w, "sync queue full", http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)

	server := &http.Server{
		Addr:              a.cfg.NotifyAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", server.Addr).Str("org", a.cfg.OrganizationID).Msg("🚀 syncd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-shutdown:
		a.log.Warn().Str("signal", sig.String()).Msg("⚠️ Shutting down gracefully...")
	case err := <-serverErr:
		a.log.Error().Err(err).Msg("server failed")
		a.engine.Stop()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	a.engine.Stop()
	cancel()

	a.log.Info().Msg("✅ Shutdown complete")
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

