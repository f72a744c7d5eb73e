package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/linguaflow/lingua-core/internal/audio"
	"github.com/linguaflow/lingua-core/internal/config"
	"github.com/linguaflow/lingua-core/internal/translate"
)

// Registry maps client identity to its active session and enforces at most
// one live session per client. All mutations for a client are serialized;
// different clients are fully independent.
type Registry struct {
	ctx       context.Context
	audioCfg  config.AudioConfig
	provider  translate.Provider
	device    audio.Device
	log       *slog.Logger
	observers []Observer

	mu       sync.Mutex
	sessions map[string]*Session

	meter       metric.Meter
	started     metric.Int64Counter
	stopped     metric.Int64Counter
	activeGauge metric.Int64ObservableGauge
}

// NewRegistry creates the registry. ctx bounds the lifetime of every session
// it launches.
func NewRegistry(ctx context.Context, audioCfg config.AudioConfig,
	provider translate.Provider, device audio.Device, log *slog.Logger,
	observers ...Observer) *Registry {
	r := &Registry{
		ctx:       ctx,
		audioCfg:  audioCfg,
		provider:  provider,
		device:    device,
		log:       log.With(slog.String("component", "session-registry")),
		observers: observers,
		sessions:  make(map[string]*Session),
		meter:     otel.Meter("github.com/linguaflow/lingua-core/session"),
	}
	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return r
}

func (r *Registry) initMetrics() error {
	var err error
	r.started, err = r.meter.Int64Counter("lingua.sessions.started",
		metric.WithDescription("Translation sessions started"))
	if err != nil {
		return err
	}
	r.stopped, err = r.meter.Int64Counter("lingua.sessions.stopped",
		metric.WithDescription("Translation sessions stopped"))
	if err != nil {
		return err
	}
	r.activeGauge, err = r.meter.Int64ObservableGauge("lingua.sessions.active",
		metric.WithDescription("Currently registered translation sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(r.Count()))
			return nil
		}))
	return err
}

// Start validates the selection, replaces any existing session for the
// client, and launches a fresh one. Validation failures mutate nothing.
func (r *Registry) Start(clientID, language, gender string, emit Emitter) (*Session, error) {
	if !translate.SupportedLanguage(language) || !translate.SupportedGender(gender) {
		return nil, ErrInvalidSelection
	}

	id := uuid.NewString()
	wrapped := &observingEmitter{
		inner:     emit,
		observers: r.observers,
		sessionID: id,
		clientID:  clientID,
	}

	r.mu.Lock()
	old := r.sessions[clientID]
	if old != nil {
		// Teardown of the superseded session is requested before the
		// replacement is installed; it is not awaited to completion.
		old.Stop()
	}
	s := newSession(r.ctx, id, clientID, language, gender,
		r.provider, r.device, r.audioCfg, wrapped, r.log)
	r.sessions[clientID] = s
	r.mu.Unlock()

	go s.run()

	if old != nil {
		r.notifyStopped(old)
	}
	if r.started != nil {
		r.started.Add(r.ctx, 1)
	}
	for _, o := range r.observers {
		o.SessionStarted(s.ID(), clientID, language, gender)
	}
	r.log.Info("session started",
		slog.String("client_id", clientID),
		slog.String("session_id", s.ID()),
		slog.String("language", language),
		slog.String("gender", gender),
		slog.Bool("replaced", old != nil))
	return s, nil
}

// Stop requests teardown of the client's session and removes it from the
// mapping. It reports whether a session existed; stopping an absent client
// mutates nothing.
func (r *Registry) Stop(clientID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[clientID]
	if ok {
		delete(r.sessions, clientID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Stop()
	r.notifyStopped(s)
	r.log.Info("session stop requested",
		slog.String("client_id", clientID),
		slog.String("session_id", s.ID()))
	return true
}

// OnDisconnect has the same effect as Stop and is invoked when the client's
// event channel closes.
func (r *Registry) OnDisconnect(clientID string) {
	r.Stop(clientID)
}

// Active returns the client's registered session, or nil.
func (r *Registry) Active(clientID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[clientID]
}

// Count reports the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close requests teardown of every session and waits briefly for each to
// finish. Used during runtime shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-time.After(5 * time.Second):
			r.log.Warn("session did not stop in time",
				slog.String("session_id", s.ID()))
		}
		r.notifyStopped(s)
	}
}

func (r *Registry) notifyStopped(s *Session) {
	if r.stopped != nil {
		r.stopped.Add(context.Background(), 1)
	}
	for _, o := range r.observers {
		o.SessionStopped(s.ID(), s.ClientID())
	}
}
