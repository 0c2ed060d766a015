package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shivanand-hulikatti/tutormatch/internal/config"
	"github.com/Shivanand-hulikatti/tutormatch/internal/handler"
	"github.com/Shivanand-hulikatti/tutormatch/internal/matching"
	"github.com/Shivanand-hulikatti/tutormatch/internal/metrics"
	"github.com/Shivanand-hulikatti/tutormatch/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var (
		autoMigrate bool
		seedFile    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg, autoMigrate, seedFile)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", true, "apply the schema on startup (SQL drivers)")
	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML file of tutors and students to load on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, autoMigrate bool, seedFile string) error {
	// ── 1. Open the configured store ─────────────────────────────────────
	st, err := openStores(ctx, cfg.Store, autoMigrate)
	if err != nil {
		return err
	}
	defer st.close()

	if seedFile != "" {
		if err := seed(ctx, st.people, seedFile); err != nil {
			return err
		}
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessionSvc := service.NewSessionService(st.sessions, service.WithMetrics(m))
	engine := matching.NewEngine(st.sessions, st.people, matching.WithMetrics(m))
	sessionHandler := handler.NewSessionHandler(sessionSvc, engine)

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewRouter(sessionHandler, m, reg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("server listening on http://localhost:%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Block until SIGINT, SIGTERM or a listener failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
