package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dvbcore/tsengine/internal/config"
	"github.com/dvbcore/tsengine/internal/demux"
	"github.com/dvbcore/tsengine/internal/dvbdevice"
	"github.com/dvbcore/tsengine/internal/dvr"
	"github.com/dvbcore/tsengine/internal/frontend"
	"github.com/dvbcore/tsengine/internal/metrics"
	"github.com/dvbcore/tsengine/internal/pacer"
	"github.com/dvbcore/tsengine/internal/reactor"
)

var version = "dev"

func main() {
	var (
		configPath = pflag.String("config", "", "path to the input's YAML config file")
		debug      = pflag.Bool("debug", false, "enable debug logging")
		metricsAddr = pflag.String("metrics-addr", ":9421", "address for the Prometheus metrics endpoint")
	)
	pflag.Parse()

	level := slog.LevelInfo
	if *debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *configPath == "" {
		slog.Error("missing required --config flag")
		os.Exit(1)
	}
	data, err := os.ReadFile(*configPath)
	if err != nil {
		slog.Error("failed to read config", "error", err)
		os.Exit(1)
	}
	doc, err := config.Parse(data)
	if err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("tsengine starting", "version", version, "config", *configPath, "metrics_addr", *metricsAddr)

	metricsReg := metrics.New()

	g, ctx := errgroup.WithContext(ctx)

	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: metricsReg.Handler()}
	g.Go(func() error {
		slog.Info("metrics server listening", "addr", *metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return metricsSrv.Close()
	})

	switch {
	case doc.Tuner != nil:
		if err := runTuner(ctx, g, doc.Tuner, metricsReg); err != nil {
			slog.Error("failed to start tuner input", "error", err)
			os.Exit(1)
		}
	case doc.File != nil:
		runFile(ctx, g, doc.File, metricsReg)
	}

	if err := g.Wait(); err != nil {
		slog.Error("exiting on error", "error", err)
		os.Exit(1)
	}
}

// runTuner wires the frontend worker, reactor, demux manager, and DVR
// reader for one DVB tuner input, wiring each long-running component
// into one errgroup.
func runTuner(ctx context.Context, g *errgroup.Group, tuner *config.Tuner, metricsReg *metrics.Registry) error {
	fe, err := dvbdevice.OpenFrontend(tuner.Adapter, tuner.Device)
	if err != nil {
		return err
	}
	if tuner.Type == config.DVBS2 && !fe.Supports2G() {
		fe.Close()
		return fmt.Errorf("adapter%d does not support DVB-S2", tuner.Adapter)
	}

	msgs := make(chan frontend.Message, 16)
	worker := frontend.NewWorker(fe, tuner, msgs)

	mgr := demux.New(func() (*dvbdevice.Demux, error) {
		return dvbdevice.OpenDemux(tuner.Adapter, tuner.Device)
	}, tuner.Budget)

	label := fmt.Sprintf("adapter%d:frontend%d", tuner.Adapter, tuner.Device)
	rx := reactor.New(label, mgr, metricsReg)

	if tuner.Budget {
		mgr.Join(0x2000)
	}

	dvrReader := dvr.New(func() (*dvbdevice.DVR, error) {
		return dvbdevice.OpenDVR(tuner.Adapter, tuner.Device)
	}, tuner.BufferSize, func(pkt []byte) {
		_ = pkt // downstream TS sink (remux/distribution) is wired by the caller
	})

	g.Go(func() error {
		defer fe.Close()
		return worker.Run(ctx)
	})
	g.Go(func() error {
		rx.Run(ctx, msgs)
		return nil
	})
	g.Go(func() error {
		return dvrReader.Run(ctx)
	})

	return nil
}

// runFile wires the file pacing engine as the data-plane substitute
// for file inputs replacing a live tuner.
func runFile(ctx context.Context, g *errgroup.Group, file *config.File, metricsReg *metrics.Registry) {
	p := pacer.New(file.Filename, file.Lock, func(pkt []byte) {
		_ = pkt // forwarded to the TS sink; see runTuner's note above
	})

	g.Go(func() error {
		if err := p.Open(); err != nil {
			return err
		}
		defer p.Close()
		return p.Run(ctx)
	})
}
