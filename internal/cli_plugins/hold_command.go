package cliplugins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mcastguard/internal/capability"
	"mcastguard/internal/lifecycle"
	"mcastguard/internal/platform/wifi"
	"mcastguard/internal/util/logger/sl"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// HoldCommand держит multicast, пока хост активен, и освобождает его при завершении
type HoldCommand struct {
	cmd *cobra.Command
	app *AppContext

	// signals можно отключить в тестах
	signals bool
}

func NewHoldCommand(app *AppContext) *HoldCommand {
	return &HoldCommand{app: app, signals: true}
}

func (h *HoldCommand) Meta() *cobra.Command {
	if h.cmd != nil {
		return h.cmd
	}
	h.cmd = &cobra.Command{
		Use:   "hold",
		Short: "Hold the multicast capability while the host is active",
		Long: "Acquires the multicast capability on the Wi-Fi interface and keeps it until teardown.\n" +
			"SIGUSR1/SIGUSR2 or the host state file switch between active and inactive.",
		Args: cobra.NoArgs,
	}
	h.cmd.Flags().String("state-file", "", "host lifecycle state file (overrides config)")
	h.cmd.Flags().String("metrics-addr", "", "address for the prometheus /metrics endpoint (overrides config)")
	h.cmd.Flags().Bool("deferred", false, "wait for the host to become active before acquiring")
	return h.cmd
}

func (h *HoldCommand) Execute(ctx context.Context, cmd *cobra.Command, _ []string) error {
	const op = "cliplugins.HoldCommand.Execute"
	log := h.app.Log.With(slog.String("op", op))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stateFile := h.app.Config.Host.StateFile
	if v, _ := cmd.Flags().GetString("state-file"); v != "" {
		stateFile = v
	}
	metricsAddr := h.app.Config.Metrics.Addr
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		metricsAddr = v
	}
	deferred := h.app.Config.Host.Deferred
	if v, _ := cmd.Flags().GetBool("deferred"); v {
		deferred = true
	}

	// сначала убираем то, что оставил упавший предыдущий процесс
	if report, err := wifi.Recover(h.app.Journal(), h.app.flags(), nil, h.app.Log); err != nil {
		log.Warn("stale lease recovery failed", sl.Err(err))
	} else if len(report.Stale) > 0 {
		log.Info("recovered stale leases",
			slog.Int("stale", len(report.Stale)),
			slog.Any("restored", report.Restored),
		)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := capability.NewMetrics(reg)

	guard := h.app.NewGuard(metrics, nil)
	defer guard.Close()

	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, reg, log)
		defer stop()
	}

	sources := make([]lifecycle.Source, 0, 2)
	if h.signals {
		signalSource := lifecycle.NewSignalSource()
		defer signalSource.Close()
		sources = append(sources, signalSource)
	}

	if stateFile != "" {
		stateSource, err := lifecycle.NewStateFileSource(lifecycle.StateFileConfig{
			Path:             stateFile,
			DebounceDuration: h.app.Config.Host.Debounce,
			Logger:           h.app.Log,
		})
		if err != nil {
			return fmt.Errorf("watch host state file: %w", err)
		}
		defer stateSource.Close()
		go logErrors(ctx, stateSource.Errors(), log)
		sources = append(sources, stateSource)
	}

	controller := lifecycle.NewController(guard, func(err error) {
		if wifi.IsUnavailable(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "multicast unavailable: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "multicast acquire failed: %v\n", err)
	}, h.app.Log)

	if !deferred {
		controller.Handle(lifecycle.EventActive)
	}

	log.Info("holding multicast capability",
		slog.Bool("held", guard.Held()),
		slog.String("state_file", stateFile),
	)

	return controller.Run(ctx, sources...)
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", sl.Err(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("metrics server shutdown", sl.Err(err))
		}
	}
}

func logErrors(ctx context.Context, errs <-chan error, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			log.Warn("host state file error", sl.Err(err))
		}
	}
}
