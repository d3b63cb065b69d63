// Command voiced wires the audio capture, VAD/segmentation, sidecar, and
// press-to-talk subsystems into one running process: continuous listening
// starts immediately, the hotkey controller stands ready to interrupt it,
// and a loopback HTTP/WebSocket server exposes history and live events to
// whatever window/tray UI attaches.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/voicedapp/voiced/internal/config"
	"github.com/voicedapp/voiced/internal/eventbus"
	"github.com/voicedapp/voiced/internal/frameproducer"
	"github.com/voicedapp/voiced/internal/history"
	"github.com/voicedapp/voiced/internal/hotkey"
	"github.com/voicedapp/voiced/internal/pipeline"
	"github.com/voicedapp/voiced/internal/resilience"
	"github.com/voicedapp/voiced/internal/segment"
	"github.com/voicedapp/voiced/internal/server"
	"github.com/voicedapp/voiced/internal/settings"
	"github.com/voicedapp/voiced/internal/sidecar"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	historyStore, err := history.Open(historyPath(cfg))
	if err != nil {
		slog.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = historyStore.Close() }()

	settingsStore, err := settings.Open(settings.NewFilePersister(filepath.Join(cfg.CacheDir, "settings.json")))
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		os.Exit(1)
	}

	bus := eventbus.New()

	client := sidecar.New(sidecar.Config{
		Binary:     cfg.SidecarBinary,
		SearchDirs: cfg.SidecarSearchDir,
		Handshake:  cfg.SidecarHandshake,
		CacheDir:   cfg.CacheDir,
		Breaker:    resilience.New(resilience.DefaultConfig()),
	})

	startupCtx, startupCancel := context.WithTimeout(context.Background(), cfg.SidecarHandshake+5*time.Second)
	if err := client.Start(startupCtx); err != nil {
		slog.Error("sidecar failed to start", "error", err)
		bus.Publish(eventbus.Event{
			Type:    eventbus.ModelLoadError,
			Payload: eventbus.ModelLoadPayload{ModelName: cfg.ModelName, Error: err.Error()},
		})
	} else {
		if cfg.ModelName != "" {
			if _, err := client.SetModel(cfg.ModelName); err != nil {
				slog.Warn("failed to select ASR model", "model", cfg.ModelName, "error", err)
			}
		}
		// A freshly spawned sidecar can still be settling; retry the
		// initial load on transient errors before declaring failure.
		loadErr := resilience.Retry(startupCtx, resilience.SidecarRetryConfig(), func() error {
			_, err := client.LoadModel()
			return err
		})
		if loadErr != nil {
			slog.Error("ASR model failed to load", "model", cfg.ModelName, "error", loadErr)
			bus.Publish(eventbus.Event{
				Type:    eventbus.ModelLoadError,
				Payload: eventbus.ModelLoadPayload{ModelName: cfg.ModelName, Error: loadErr.Error()},
			})
		} else {
			bus.Publish(eventbus.Event{
				Type:    eventbus.ModelLoadComplete,
				Payload: eventbus.ModelLoadPayload{ModelName: cfg.ModelName},
			})
		}
		if cfg.PostprocessModel != "" {
			if _, err := client.SetPostprocessModel(cfg.PostprocessModel); err != nil {
				slog.Warn("postprocess model could not be selected", "model", cfg.PostprocessModel, "error", err)
			} else if _, err := client.LoadPostprocessModel(); err != nil {
				slog.Warn("postprocess model failed to load", "model", cfg.PostprocessModel, "error", err)
			}
		}
	}
	startupCancel()
	defer func() { _ = client.Close() }()

	sup := pipeline.New(client, historyStore, bus)
	sup.NewSink = func() (segment.Sink, error) {
		return segment.NewWAVSink(filepath.Join(cfg.CacheDir, "vad_segments"))
	}

	pipelineCfg := pipeline.Config{
		DeviceName:      settingsStore.DeviceName(),
		FrameSize:       cfg.FrameSize,
		FrameQueueDepth: cfg.FrameQueueDepth,
		SegmentQueueCap: cfg.SegmentQueueCap,
		VADThreshold:    cfg.VADThreshold,
		Language:        settingsStore.Language(),
		ModelName:       cfg.ModelName,
		Segment: segment.Config{
			SampleRate:     cfg.SampleRate,
			SilenceTail:    cfg.SilenceTail,
			MaxSegment:     cfg.MaxSegment,
			PreRoll:        cfg.PreRoll,
			MinSegmentSecs: cfg.MinSegmentSecs,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := sup.Start(ctx, pipelineCfg); err != nil {
		slog.Error("failed to start continuous listening", "error", err)
	}

	hotkeyCaptureDir := filepath.Join(cfg.CacheDir, "hotkey")
	controller, err := hotkey.New(settingsStore.Get().Hotkey, sup, pipelineCfg, client, bus, settingsStore, hotkeyCaptureDir)
	if err != nil {
		slog.Error("failed to construct hotkey controller", "error", err)
		bus.Publish(eventbus.Event{
			Type:    eventbus.HotkeyInitError,
			Payload: eventbus.HotkeyPayload{Hotkey: cfg.Hotkey, Error: err.Error()},
		})
	} else if err := controller.Start(ctx); err != nil {
		slog.Error("failed to register hotkey", "error", err)
		bus.Publish(eventbus.Event{
			Type:    eventbus.HotkeyInitError,
			Payload: eventbus.HotkeyPayload{Hotkey: cfg.Hotkey, Error: err.Error()},
		})
	} else {
		bus.Publish(eventbus.Event{
			Type:    eventbus.HotkeyRegistered,
			Payload: eventbus.HotkeyPayload{Hotkey: cfg.Hotkey},
		})
		defer func() { _ = controller.Stop() }()
	}

	srv := server.New(bus, historyStore, client)
	srv.Devices = frameproducer.ListDevices
	httpServer := &http.Server{
		Addr:         cfg.EventAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("voiced starting", "event_addr", cfg.EventAddr, "hotkey", cfg.Hotkey)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	sup.StopIfRunning()
	slog.Info("shutdown complete")
}

func historyPath(cfg *config.Config) string {
	if cfg.HistoryPath != "" {
		return cfg.HistoryPath
	}
	return filepath.Join(cfg.CacheDir, "history.db")
}
