package session

// Emitter delivers session events to the owning client's channel. Events are
// produced while the session is running or stopping; an error raised during
// teardown is still delivered.
type Emitter interface {
	Status(message string)
	Translation(text, language string)
	Error(message string)
}

// Observer is notified of session lifecycle and translated text so the
// timeline store and the bus can record them without the session knowing
// either exists.
type Observer interface {
	SessionStarted(sessionID, clientID, language, gender string)
	SessionStopped(sessionID, clientID string)
	TranslationText(sessionID, clientID, text, language string)
}

// observingEmitter fans translated text out to registry observers while
// passing every event through to the client emitter.
type observingEmitter struct {
	inner     Emitter
	observers []Observer
	sessionID string
	clientID  string
}

func (e *observingEmitter) Status(message string) { e.inner.Status(message) }

func (e *observingEmitter) Translation(text, language string) {
	e.inner.Translation(text, language)
	for _, o := range e.observers {
		o.TranslationText(e.sessionID, e.clientID, text, language)
	}
}

func (e *observingEmitter) Error(message string) { e.inner.Error(message) }
