package eventstore

import (
	"context"
	"log/slog"
)

// Recorder mirrors session lifecycle and translated text into the store.
type Recorder struct {
	store *Store
	log   *slog.Logger
}

func NewRecorder(store *Store, log *slog.Logger) *Recorder {
	return &Recorder{
		store: store,
		log:   log.With(slog.String("component", "event-recorder")),
	}
}

func (r *Recorder) SessionStarted(sessionID, clientID, language, gender string) {
	ctx := context.Background()
	if err := r.store.AppendSession(ctx, sessionID, clientID, language, gender); err != nil {
		r.log.Warn("record session", slog.String("error", err.Error()))
		return
	}
	r.append(ctx, Event{
		SessionID: sessionID,
		ClientID:  clientID,
		Type:      EventSessionStarted,
		Language:  language,
	})
}

func (r *Recorder) SessionStopped(sessionID, clientID string) {
	r.append(context.Background(), Event{
		SessionID: sessionID,
		ClientID:  clientID,
		Type:      EventSessionStopped,
	})
}

func (r *Recorder) TranslationText(sessionID, clientID, text, language string) {
	r.append(context.Background(), Event{
		SessionID: sessionID,
		ClientID:  clientID,
		Type:      EventTranslation,
		Text:      text,
		Language:  language,
	})
}

func (r *Recorder) append(ctx context.Context, evt Event) {
	if err := r.store.AppendEvent(ctx, evt); err != nil {
		r.log.Warn("record event",
			slog.String("event_type", evt.Type),
			slog.String("error", err.Error()))
	}
}
