// Package runtime assembles the translation relay daemon: telemetry, the
// message bus, the event store, the audio device, the session registry, and
// the client gateway behind one HTTP server.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linguaflow/lingua-core/internal/audio"
	"github.com/linguaflow/lingua-core/internal/bus"
	"github.com/linguaflow/lingua-core/internal/config"
	"github.com/linguaflow/lingua-core/internal/eventstore"
	"github.com/linguaflow/lingua-core/internal/gateway"
	"github.com/linguaflow/lingua-core/internal/natsserver"
	"github.com/linguaflow/lingua-core/internal/session"
	"github.com/linguaflow/lingua-core/internal/translate"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	bus         *bus.Client
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the daemon up and blocks until ctx is canceled, then shuts the
// pieces down in reverse dependency order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		busClient, err = bus.Connect(ctx, r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()
		r.bus = busClient
	}

	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer store.Close()

	provider, err := r.buildProvider(ctx)
	if err != nil {
		return err
	}

	device := audio.New(r.cfg.Audio, r.logger)
	if hw, ok := device.(*audio.HardwareDevice); ok {
		defer hw.Release()
	}

	var observers []session.Observer
	if busClient != nil {
		observers = append(observers, bus.NewPublisher(busClient, r.logger))
	}
	observers = append(observers, eventstore.NewRecorder(store, r.logger))

	registry := session.NewRegistry(ctx, r.cfg.Audio, provider, device, r.logger, observers...)
	defer registry.Close()

	gw := gateway.New(r.cfg.Gateway, registry, r.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	gw.Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) buildProvider(ctx context.Context) (translate.Provider, error) {
	switch r.cfg.Translator.Mode {
	case "mock":
		r.logger.Warn("translator running in mock mode")
		return translate.NewMockProvider(), nil
	default:
		provider, err := translate.NewGeminiProvider(ctx, r.cfg.Translator, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create translator: %w", err)
		}
		return provider, nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && (r.bus == nil || r.bus.Healthy()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
