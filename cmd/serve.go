package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/metrics"
	"github.com/kozaktomas/face-auth/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Auth web server.
The server exposes enrollment, verification and administration endpoints
under /api and Prometheus metrics under /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// applyServeFlags lets explicit flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.WebConfig) {
	if cmd.Flags().Changed("port") {
		cfg.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = mustGetString(cmd, "host")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	a, err := newApp(ctx, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Error("error during cleanup", "error", err)
		}
	}()

	if a.cfg.Auth.SecretKey == config.DefaultSecretKey {
		a.logger.Warn("JWT_SECRET_KEY is the built-in default; set a real secret before exposing the service")
	}

	v, err := a.newVerifier()
	if err != nil {
		return err
	}

	applyServeFlags(cmd, &a.cfg.Web)
	server := web.NewServer(&a.cfg.Web, v, m.Handler(), a.logger)

	a.logger.Info("face auth service ready",
		"users", a.store.Count(),
		"backend", a.cfg.Store.Backend,
		"encoder", a.cfg.Encoder.URL,
		"algorithm", a.cfg.Auth.Algorithm,
		"events", a.cfg.Face.AllowedEvents)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", "error", err)
	}
	if err := <-errCh; err != nil {
		a.logger.Error("server stopped with error", "error", err)
	}

	// Retry a snapshot write that failed earlier; a clean store is left alone.
	if err := a.store.Flush(shutdownCtx); err != nil {
		a.logger.Error("failed to persist face encodings on shutdown", "error", err)
	}
	a.logger.Info("face auth service stopped", "users", a.store.Count())
	return nil
}
