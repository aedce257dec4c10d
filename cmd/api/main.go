package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/mydiary/internal/config"
	"github.com/crucial707/mydiary/internal/db"
	"github.com/crucial707/mydiary/internal/logging"
	"github.com/crucial707/mydiary/internal/metrics"
	"github.com/crucial707/mydiary/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mydiary-api",
		Short:         "MyDiary API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "optional YAML config file (overrides environment)")

	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

// loadConfig resolves env, then --config, then changed flags of cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithOverrides(path, cmd.Flags())
	if err != nil {
		return cfg, err
	}
	logging.Setup(cfg.LogFormat, cfg.LogLevel)
	return cfg, cfg.Validate()
}

// ==========================
// serve
// ==========================
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			autoMigrate, _ := cmd.Flags().GetBool("migrate")
			return serve(cmd.Context(), cfg, autoMigrate)
		},
	}
	f := cmd.Flags()
	f.String("port", "", "listen port (env PORT)")
	f.String("log-format", "", "text or json (env LOG_FORMAT)")
	f.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	f.String("redis-addr", "", "Redis address for sessions (env REDIS_ADDR)")
	f.String("upload-dir", "", "local image directory (env UPLOAD_DIR)")
	f.Bool("migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, autoMigrate bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := scheduler.ValidateCron(cfg.TokenSweepCron); err != nil {
		return err
	}

	database, err := db.Connect(ctx, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass, db.ConnectOptions{
		SSLMode:      cfg.DBSSLMode,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if autoMigrate {
		if err := db.Run(cfg.DatabaseURL()); err != nil {
			return err
		}
		slog.Info("migrations applied")
	}

	a, err := newApp(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer a.Close()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := scheduler.RunTokenSweeper(ctx, cfg.TokenSweepCron, a.accounts.PurgeExpiredTokens, metrics.AddResetTokensPurged); err != nil {
			slog.Error("token sweeper", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSCertFile != "" {
			slog.Info("starting server (HTTPS)", "port", cfg.Port)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			slog.Info("starting server", "port", cfg.Port)
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	cancel()
	<-sweepDone
	return serveErr
}

// ==========================
// migrate
// ==========================
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := db.Run(cfg.DatabaseURL()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			steps, _ := cmd.Flags().GetInt("steps")
			if err := db.Down(cfg.DatabaseURL(), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			v, dirty, err := db.Version(cfg.DatabaseURL())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
