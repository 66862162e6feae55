package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/postgres"
	"github.com/kozaktomas/face-auth/internal/encoder"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/logger"
	"github.com/kozaktomas/face-auth/internal/metrics"
	"github.com/kozaktomas/face-auth/internal/verifier"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	store    *database.TemplateStore
	pool     *postgres.Pool
	closeLog func() error
}

// newApp loads configuration, opens the configured template backend and
// loads the stored templates. rec may be nil.
func newApp(ctx context.Context, rec metrics.Recorder) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, closeLog, err := logger.Open(cfg.Log.File, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	slog.SetDefault(log)

	if rec == nil {
		rec = metrics.NoopMetrics{}
	}
	a := &app{cfg: cfg, logger: log, recorder: rec, closeLog: closeLog}

	persister, err := a.openPersister(ctx)
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	a.store = database.NewTemplateStore(persister,
		database.WithLogger(log), database.WithRecorder(rec))
	a.store.Load(ctx)
	return a, nil
}

// openPersister selects the snapshot backend from STORE_BACKEND.
func (a *app) openPersister(ctx context.Context) (database.SnapshotPersister, error) {
	switch a.cfg.Store.Backend {
	case config.BackendPostgres:
		a.logger.Info("connecting to PostgreSQL database")
		pool, err := postgres.Open(ctx, &a.cfg.Database, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.pool = pool
		return postgres.NewTemplateRepository(pool), nil
	default:
		a.logger.Info("using snapshot file", "path", a.cfg.Store.EncodingsFile)
		return database.NewFilePersister(a.cfg.Store.EncodingsFile), nil
	}
}

// newVerifier wires the encoder client, token validator and matcher.
func (a *app) newVerifier() (*verifier.Verifier, error) {
	matcher, err := facematch.NewMatcher(a.cfg.Face.Tolerance, a.cfg.Face.MinConfidence, a.cfg.Face.DistanceMetric)
	if err != nil {
		return nil, err
	}

	tokens, err := a.tokenValidator()
	if err != nil {
		return nil, err
	}

	enc := encoder.NewClient(a.cfg.Encoder.URL, a.cfg.Encoder.Timeout, encoder.WithRecorder(a.recorder))

	return verifier.New(a.store, enc, tokens,
		verifier.WithMatcher(matcher),
		verifier.WithAllowedEvents(a.cfg.Face.AllowedEvents),
		verifier.WithMaxFileSize(a.cfg.Face.MaxFileSize),
		verifier.WithRejectMultiple(a.cfg.Face.RejectMultiple),
		verifier.WithLogger(a.logger),
		verifier.WithRecorder(a.recorder),
	), nil
}

func (a *app) tokenValidator() (*auth.TokenValidator, error) {
	tokens, err := auth.NewTokenValidator(a.cfg.Auth.SecretKey, a.cfg.Auth.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("configuring token validation: %w", err)
	}
	return tokens, nil
}

// close releases the database pool and log file.
func (a *app) close() error {
	var errs []error
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	errs = append(errs, a.closeLog())
	return errors.Join(errs...)
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
