package protocol

import "time"

// Client command types carried over the per-client gateway channel.
const (
	CommandStart      = "start"
	CommandStop       = "stop"
	CommandAudioChunk = "audio_chunk"
)

// Server event types emitted back to the client.
const (
	EventStatus      = "status"
	EventTranslation = "translation"
	EventError       = "error"
)

// ClientCommand is an inbound message from a browser client.
type ClientCommand struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Audio    string `json:"audio,omitempty"` // base64-encoded audio chunk
}

// ServerEvent is an outbound message to a browser client.
type ServerEvent struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
}

// SessionStarted announces a new translation session on the bus.
type SessionStarted struct {
	SessionID string    `json:"session_id"`
	ClientID  string    `json:"client_id"`
	Language  string    `json:"language"`
	Gender    string    `json:"gender"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStopped announces the end of a translation session on the bus.
type SessionStopped struct {
	SessionID string    `json:"session_id"`
	ClientID  string    `json:"client_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Translation is a translated utterance broadcast on the bus.
type Translation struct {
	SessionID string    `json:"session_id"`
	ClientID  string    `json:"client_id"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSessionStarted  = "session.started"
	SubjectSessionStopped  = "session.stopped"
	SubjectTranslationText = "translation.text"
)
