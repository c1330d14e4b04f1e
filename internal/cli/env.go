package cli

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/NSSimpleApps/TestToDoList/internal/config"
	"github.com/NSSimpleApps/TestToDoList/internal/prefs"
	"github.com/NSSimpleApps/TestToDoList/internal/remote"
	"github.com/NSSimpleApps/TestToDoList/internal/schema"
	"github.com/NSSimpleApps/TestToDoList/internal/store"
	"github.com/NSSimpleApps/TestToDoList/internal/telemetry"
	"github.com/NSSimpleApps/TestToDoList/internal/todolist"
)

// env is everything a command needs, opened from the config.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	out    *OutputFormatter
	store  *store.Manager
	svc    *todolist.Service
}

func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, _, _, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, newLogger(cfg, opts.Verbose, cmd.ErrOrStderr()), nil
}

// newLogger writes to stderr so JSON output on stdout stays clean.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openEnv loads the config and opens the store and the service. The caller
// must call close.
func openEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}
	contract, err := schema.ToDo()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid store contract", err)
	}

	// Instruments bind to the global provider; it is a no-op unless one is installed.
	metrics, err := telemetry.NewTaskMetrics(otel.GetMeterProvider())
	if err != nil {
		logger.Warn("task metrics disabled", "error", err)
	}

	st := store.Open(cfg.Store.Path, contract, store.WithLogger(logger), store.WithMetrics(metrics))
	if err := st.Ready(ctx); err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	client := remote.New(cfg.Remote.URL,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.RemoteTimeout()}),
		remote.WithMaxTries(uint(cfg.Remote.MaxTries)),
		remote.WithLogger(logger))

	seeder := todolist.DefaultSeeder()
	if cfg.Seed.Description == "coin_flip" {
		seed := uint64(time.Now().UnixNano())
		seeder.Description = todolist.DescriptionCoinFlip(rand.New(rand.NewPCG(seed, seed>>1)))
	}

	svc := todolist.New(st, client, prefs.Open(cfg.Store.PrefsPath),
		todolist.WithLogger(logger),
		todolist.WithMetrics(metrics),
		todolist.WithSeeder(seeder),
		todolist.WithSearchDelay(cfg.SearchDebounce()))

	return &env{
		cfg:    cfg,
		logger: logger,
		out:    &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()},
		store:  st,
		svc:    svc,
	}, nil
}

func (e *env) close() {
	e.svc.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing store failed", "error", err)
	}
}
