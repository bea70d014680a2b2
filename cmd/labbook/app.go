package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labbook/internal/blob"
	"labbook/internal/config"
	"labbook/internal/core"
	"labbook/internal/telemetry"
	"labbook/pkg/domain"
)

// app carries what every command needs once the root command has loaded the
// configuration and opened the store.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
	svc    *core.Service
	blobs  blob.Store
	out    io.Writer
	errOut io.Writer

	// now names export files; tests pin it.
	now func() time.Time

	prom     *core.PrometheusMetricsRecorder
	expvar   *core.ExpvarMetricsRecorder
	closers  []func(context.Context) error
	reloaded bool
	done     bool
}

func (a *app) setup(ctx context.Context) error {
	path := a.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}))

	opts := []core.Option{
		core.WithLogger(a.logger),
		core.WithReloadHook(func() { a.reloaded = true }),
	}
	tracerOpt, err := a.tracer(ctx)
	if err != nil {
		return err
	}
	if tracerOpt != nil {
		opts = append(opts, tracerOpt)
	}
	switch strings.ToLower(cfg.Observability.Metrics) {
	case "expvar":
		a.expvar = core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(a.expvar))
	case "prometheus":
		a.prom = core.NewPrometheusMetricsRecorder()
		opts = append(opts, core.WithMetricsRecorder(a.prom))
	}

	store, err := core.OpenPersistentStore(core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
		Key:         cfg.Storage.Key,
	}, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.svc = core.NewService(store, opts...)
	a.closers = append(a.closers, func(context.Context) error { return a.svc.Close() })
	if _, err := a.svc.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	a.logger.Debug("store ready", "driver", cfg.Storage.Driver, "has_state", store.HasState())
	return nil
}

func (a *app) tracer(ctx context.Context) (core.Option, error) {
	obs := a.cfg.Observability
	switch strings.ToLower(obs.Tracing) {
	case "json":
		w := a.errOut
		if obs.TraceFile != "" {
			f, err := os.OpenFile(obs.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
			if err != nil {
				return nil, fmt.Errorf("open trace file: %w", err)
			}
			a.closers = append(a.closers, func(context.Context) error { return f.Close() })
			w = f
		}
		return core.WithTracer(core.NewJSONTracer(w)), nil
	case "otlp":
		tr, shutdown, err := telemetry.Setup(ctx, obs.OTLPEndpoint)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, shutdown)
		return core.WithTracer(core.NewOTelTracer(tr)), nil
	}
	return nil, nil
}

// teardown flushes metrics and releases everything setup opened, newest first.
func (a *app) teardown(ctx context.Context) error {
	if a.cfg == nil || a.done {
		return nil
	}
	a.done = true
	var errs []error
	if a.prom != nil && a.cfg.Observability.MetricsTextfile != "" {
		if err := a.prom.WriteTextfile(a.cfg.Observability.MetricsTextfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.expvar != nil {
		snap := a.expvar.Snapshot()
		a.logger.Debug("operation metrics", "durations_ms", snap.DurationsMS, "results", snap.Results)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// blobStore opens the backup target on first use, so commands that never
// touch backups do not need S3 credentials.
func (a *app) blobStore(ctx context.Context) (blob.Store, error) {
	if a.blobs != nil {
		return a.blobs, nil
	}
	b := a.cfg.Blob
	store, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(b.Driver),
		FSRoot: b.FSRoot,
		S3: blob.S3Config{
			Region:          b.S3.Region,
			Bucket:          b.S3.Bucket,
			Endpoint:        b.S3.Endpoint,
			AccessKeyID:     b.S3.AccessKeyID,
			SecretAccessKey: b.S3.SecretAccessKey,
			PathStyle:       b.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.blobs = store
	return store, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// exitCode maps input errors to 2 and everything else to 1.
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrFormat), errors.Is(err, domain.ErrNotFound):
		return 2
	default:
		return 1
	}
}

// execute runs one command line. Teardown also runs when the command
// failed, which cobra's post-run hooks skip.
func execute(ctx context.Context, a *app, args []string) error {
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, a.teardown(context.WithoutCancel(ctx)))
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, now: time.Now}
}

func newRootCommand(a *app) *cobra.Command {
	out, errOut := a.out, a.errOut
	cmd := &cobra.Command{
		Use:           "labbook",
		Short:         "Lab record keeper for protocols, reagents, duties, cell lines and runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $LABBOOK_CONFIG or ~/.config/labbook/config.toml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	cmd.AddCommand(
		newPageCommand(a),
		newSearchCommand(a),
		newResolveCommand(a),
		newRunCommand(a),
		newPassageCommand(a),
		newExportCommand(a),
		newImportCommand(a),
		newBackupCommand(a),
	)
	return cmd
}
