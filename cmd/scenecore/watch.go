package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scenecore/internal/core"
)

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := subFlags("watch")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: watch <snapshot.json>", errUsage)
	}
	path := fs.Arg(0)

	var opts []core.Option
	if a.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg, a.cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
		opts = append(opts, core.WithMetricsRecorder(rec))
		stop := serveMetrics(a.logger, a.cfg.Metrics.Listen, reg)
		defer stop()
	}

	load := func(ctx context.Context) (*core.Service, error) { return a.loadFile(ctx, path, opts...) }
	return watchSnapshot(ctx, path, load, func(svc *core.Service, err error) {
		if err != nil {
			a.logger.Error("reload failed", zap.String("path", path), zap.Error(err))
			return
		}
		for _, w := range svc.Warnings() {
			a.logger.Warn("replay warning", zap.String("path", path), zap.String("warning", w))
		}
		a.logger.Info("reloaded", zap.String("path", path), zap.Int("avatars", svc.AvatarCount()))
		if err := printSummary(a.stdout, svc); err != nil {
			a.logger.Warn("print summary", zap.Error(err))
		}
	})
}

// watchSnapshot loads path once, then again after every write to it, until
// ctx is done. The parent directory is watched so editors that replace the
// file are followed.
func watchSnapshot(ctx context.Context, path string, load func(context.Context) (*core.Service, error), onLoad func(*core.Service, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer func() { _ = w.Close() }()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	onLoad(load(ctx))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			onLoad(load(ctx))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}

// serveMetrics exposes reg on addr/metrics and returns a shutdown func.
func serveMetrics(logger *zap.Logger, addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
