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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kindnest/kindnest-api/internal/app"
	"github.com/kindnest/kindnest-api/pkg/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath, logLevel string

	cmd := &cobra.Command{
		Use:   "kindnest",
		Short: "KindNest donation coordination API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, logLevel)
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, logLevel)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), configPath, logLevel)
			if err != nil {
				return err
			}
			defer a.Close()
			slog.Info("schema up to date")
			return nil
		},
	})

	var age time.Duration
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Mark pending schedules older than --age as completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd.Context(), configPath, logLevel)
			if err != nil {
				return err
			}
			defer a.Close()
			if age == 0 {
				age = a.Config.StaleScheduleAge
			}
			n, err := a.Schedules.SweepStale(cmd.Context(), age)
			if err != nil {
				return err
			}
			fmt.Printf("Updated %d stale schedules\n", n)
			return nil
		},
	}
	sweep.Flags().DurationVar(&age, "age", 0, "Age threshold (default from config)")
	cmd.AddCommand(sweep)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kindnest version %s\n", app.Version)
		},
	})

	return cmd
}

func setupLogger(level, ginMode string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if ginMode == gin.ReleaseMode {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func build(ctx context.Context, configPath, logLevel string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	gin.SetMode(cfg.GinMode)
	logger := setupLogger(logLevel, cfg.GinMode)
	if ctx == nil {
		ctx = context.Background()
	}
	return app.New(ctx, cfg, logger)
}

func serve(configPath, logLevel string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, configPath, logLevel)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", a.Config.Port, "version", app.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("could not run server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
