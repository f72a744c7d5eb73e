package translate

import "context"

// Frame is one chunk of audio headed to the remote translation session.
type Frame struct {
	Data []byte
	MIME string
}

// Event is one item from the remote response stream. A single event may
// carry text, audio, or both; TurnComplete marks the end of a response turn.
type Event struct {
	Text         string
	Audio        []byte
	TurnComplete bool
}

// SessionConfig selects the translation target for one session.
type SessionConfig struct {
	Language string // display name, e.g. "Spanish"
	Gender   string // "male" or "female"
}

// Conn is one live streaming connection to the translation provider.
// Receive returns io.EOF once the remote side has closed the stream.
// Close must be safe to call more than once and from any goroutine.
type Conn interface {
	Send(frame Frame) error
	Receive() (Event, error)
	Close() error
}

// Provider opens streaming connections to a translation backend. Connection
// failures are reported once and are fatal to the requesting session; retry
// policy belongs to the caller.
type Provider interface {
	Connect(ctx context.Context, cfg SessionConfig) (Conn, error)
}
