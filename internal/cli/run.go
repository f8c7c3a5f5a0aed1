package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/csledger/internal/changesource"
	"github.com/roach88/csledger/internal/config"
	"github.com/roach88/csledger/internal/manager"
)

// shutdownTimeout bounds how long Stop may spend releasing claims.
const shutdownTimeout = 10 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config      string
	Master      string
	MetricsAddr string

	// PollerFactory allows overriding how pollers are built (for testing).
	// If nil, defaults to manager.NewLogPollerFactory.
	PollerFactory manager.PollerFactory
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a master that claims and polls its configured change sources",
		Long: `Run a master that claims and polls its configured change sources.

The master registers every configured change source, claims the ones no
other master owns, and starts a poller for each claim. Ownership is
re-checked every poll_interval so sources released by other masters are
picked up, and claims on sources no longer configured are released. On
SIGINT/SIGTERM all pollers stop and every claim this master holds is released.

Example:
  csledger run --config ./master.yaml
  csledger run --config ./master.cue --master m-alpha --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaster(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to master config (.yaml, .yml or .cue) (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.Master, "master", "", "master id (overrides config; generated if unset)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runMaster(opts *RunOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.Load(opts.Config)
	if err != nil {
		if outErr := f.Error(ErrCodeConfig, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	master := cfg.Master
	if opts.Master != "" {
		master = changesource.MasterID(opts.Master)
	}
	if master == "" {
		master = manager.NewMasterID()
	}

	logger.Info("opening database", "path", cfg.Database)
	st, err := openStore(f, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	registry := prometheus.NewRegistry()
	mgrOpts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithPollInterval(cfg.PollInterval),
		manager.WithMetrics(manager.NewPrometheusMetrics(registry, "")),
	}
	if opts.PollerFactory != nil {
		mgrOpts = append(mgrOpts, manager.WithPollerFactory(opts.PollerFactory))
	}
	mgr := manager.New(st, master, mgrOpts...)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.MetricsAddr != "" {
		srv, err := serveMetrics(opts.MetricsAddr, registry, logger)
		if err != nil {
			return f.Fail("failed to serve metrics", err)
		}
		defer srv.Close()
	}

	if err := st.Ping(ctx); err != nil {
		return f.Fail("database not ready", err)
	}

	if err := mgr.Reconfigure(ctx, cfg.ChangeSources); err != nil {
		return f.Fail("failed to load change sources", err)
	}

	fmt.Fprintf(f.Writer, "Master %s started with %d change source(s).\n", mgr.Master(), len(cfg.ChangeSources))
	fmt.Fprintln(f.Writer, "Press Ctrl-C to stop.")

	runErr := mgr.Run(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := mgr.Stop(stopCtx); err != nil {
		return f.Fail("failed to release claims", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return f.Fail("manager error", runErr)
	}

	logger.Info("master stopped gracefully")
	return nil
}

// serveMetrics exposes registry on addr until the returned server is closed.
func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}
