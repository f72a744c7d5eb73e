package bus

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linguaflow/lingua-core/internal/protocol"
)

// eventStream captures session and translation subjects in JetStream so
// consumers can replay a session's transcript after the fact.
const eventStream = "LINGUA_EVENTS"

// Publisher broadcasts session lifecycle and translated text on the bus so
// other services can follow live translations without touching the gateway.
type Publisher struct {
	client *Client
	js     nats.JetStreamContext
	log    *slog.Logger
}

func NewPublisher(client *Client, log *slog.Logger) *Publisher {
	p := &Publisher{
		client: client,
		log:    log.With(slog.String("component", "bus-publisher")),
	}
	if _, err := client.JetStream().AddStream(&nats.StreamConfig{
		Name:     eventStream,
		Subjects: []string{"session.*", "translation.*"},
	}); err != nil {
		p.log.Warn("jetstream stream setup failed, falling back to core publish",
			slog.String("stream", eventStream),
			slog.String("error", err.Error()))
	} else {
		p.js = client.JetStream()
	}
	return p
}

func (p *Publisher) SessionStarted(sessionID, clientID, language, gender string) {
	p.publish(protocol.SubjectSessionStarted, protocol.SessionStarted{
		SessionID: sessionID,
		ClientID:  clientID,
		Language:  language,
		Gender:    gender,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) SessionStopped(sessionID, clientID string) {
	p.publish(protocol.SubjectSessionStopped, protocol.SessionStopped{
		SessionID: sessionID,
		ClientID:  clientID,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) TranslationText(sessionID, clientID, text, language string) {
	p.publish(protocol.SubjectTranslationText, protocol.Translation{
		SessionID: sessionID,
		ClientID:  clientID,
		Text:      text,
		Language:  language,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(subject string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn("marshal bus message", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if p.js != nil {
		if _, err := p.js.Publish(subject, payload); err != nil {
			p.log.Warn("publish bus message", slog.String("subject", subject), slog.String("error", err.Error()))
		}
		return
	}
	if err := p.client.Conn().Publish(subject, payload); err != nil {
		p.log.Warn("publish bus message", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
