// Package audio abstracts local capture and playback hardware behind a
// capability interface so session control flow never asks an
// environment-presence question. The runtime selects an implementation at
// startup: a malgo/oto backed device when hardware is enabled and usable,
// otherwise the null device (degraded mode).
package audio

import "errors"

// ErrDeviceUnavailable is returned when the requested capability has no
// usable hardware behind it.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// CaptureStream reads raw PCM from the local input device. Close is
// idempotent and must run during session teardown on every exit path.
type CaptureStream interface {
	Read(p []byte) (int, error)
	Close() error
}

// PlaybackStream writes raw PCM to the local output device. Close is
// idempotent.
type PlaybackStream interface {
	Write(p []byte) (int, error)
	Close() error
}

// Device is a capability-gated audio endpoint.
type Device interface {
	HasCapture() bool
	HasPlayback() bool
	OpenCapture(sampleRate, channels, frameSize int) (CaptureStream, error)
	OpenPlayback(sampleRate, channels int) (PlaybackStream, error)
}
