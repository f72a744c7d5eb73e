package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linguaflow/lingua-core/internal/audio"
	"github.com/linguaflow/lingua-core/internal/config"
	"github.com/linguaflow/lingua-core/internal/translate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		CaptureSampleRate:  16000,
		CaptureChannels:    1,
		CaptureFrameBytes:  8,
		PlaybackSampleRate: 24000,
		PlaybackChannels:   1,
	}
}

// recordingEmitter captures every outward event for assertions.
type recordingEmitter struct {
	mu           sync.Mutex
	statuses     []string
	translations []string
	errs         []string
}

func (e *recordingEmitter) Status(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, message)
}

func (e *recordingEmitter) Translation(text, language string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.translations = append(e.translations, text+"|"+language)
}

func (e *recordingEmitter) Error(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, message)
}

func (e *recordingEmitter) snapshot() (statuses, translations, errs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.statuses...),
		append([]string(nil), e.translations...),
		append([]string(nil), e.errs...)
}

func contains(values []string, substr string) bool {
	for _, v := range values {
		if strings.Contains(v, substr) {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop in time")
	}
}

// fakeCaptureStream feeds scripted mic frames behind a blocking Read.
type fakeCaptureStream struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeCaptureStream() *fakeCaptureStream {
	return &fakeCaptureStream{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (s *fakeCaptureStream) Read(p []byte) (int, error) {
	select {
	case frame := <-s.frames:
		return copy(p, frame), nil
	case <-s.closed:
		return 0, io.EOF
	}
}

func (s *fakeCaptureStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeCaptureStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakePlaybackStream records written frames.
type fakePlaybackStream struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (s *fakePlaybackStream) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	s.writes = append(s.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (s *fakePlaybackStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakePlaybackStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakePlaybackStream) written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.writes...)
}

// fakeDevice exposes whichever streams the test supplies.
type fakeDevice struct {
	capture  *fakeCaptureStream
	playback *fakePlaybackStream
}

func (d *fakeDevice) HasCapture() bool  { return d.capture != nil }
func (d *fakeDevice) HasPlayback() bool { return d.playback != nil }

func (d *fakeDevice) OpenCapture(int, int, int) (audio.CaptureStream, error) {
	if d.capture == nil {
		return nil, audio.ErrDeviceUnavailable
	}
	return d.capture, nil
}

func (d *fakeDevice) OpenPlayback(int, int) (audio.PlaybackStream, error) {
	if d.playback == nil {
		return nil, audio.ErrDeviceUnavailable
	}
	return d.playback, nil
}

func startTestSession(t *testing.T, device audio.Device) (*Session, *translate.MockProvider, *recordingEmitter) {
	t.Helper()
	provider := translate.NewMockProvider()
	emitter := &recordingEmitter{}
	s := newSession(context.Background(), "session-1", "client-1", "French", "female",
		provider, device, testAudioConfig(), emitter, testLogger())
	go s.run()
	t.Cleanup(func() {
		s.Stop()
		<-s.Done()
	})
	waitFor(t, "session running", func() bool { return s.State() == StateRunning })
	return s, provider, emitter
}

func TestSessionOrderedRelay(t *testing.T) {
	s, provider, emitter := startTestSession(t, audio.NewNullDevice())
	conn := provider.LastConn()

	for _, payload := range []string{"a", "b", "c"} {
		if err := s.SubmitAudio([]byte(payload), ""); err != nil {
			t.Fatalf("submit audio: %v", err)
		}
	}
	waitFor(t, "frames relayed", func() bool { return len(conn.Sent()) == 3 })

	sent := conn.Sent()
	for i, want := range []string{"a", "b", "c"} {
		if string(sent[i].Data) != want {
			t.Fatalf("frame %d out of order: got %q want %q", i, sent[i].Data, want)
		}
		if sent[i].MIME != pcmMIME {
			t.Fatalf("frame %d has MIME %q", i, sent[i].MIME)
		}
	}

	statuses, _, _ := emitter.snapshot()
	if !contains(statuses, "translation started for French") {
		t.Fatalf("missing started status, got %v", statuses)
	}
}

func TestSessionEmitsTranslationText(t *testing.T) {
	_, provider, emitter := startTestSession(t, audio.NewNullDevice())
	provider.LastConn().Emit(translate.Event{Text: "bonjour"})

	waitFor(t, "translation emitted", func() bool {
		_, translations, _ := emitter.snapshot()
		return contains(translations, "bonjour|French")
	})
}

func TestBargeInDiscardsQueuedAudio(t *testing.T) {
	s, provider, _ := startTestSession(t, audio.NewNullDevice())
	conn := provider.LastConn()

	conn.Emit(translate.Event{Audio: []byte{1, 2}})
	conn.Emit(translate.Event{Audio: []byte{3, 4}})
	waitFor(t, "audio queued", func() bool { return s.PendingPlayback() == 2 })

	conn.Emit(translate.Event{TurnComplete: true})
	waitFor(t, "queue drained", func() bool { return s.PendingPlayback() == 0 })

	if s.State() != StateRunning {
		t.Fatalf("barge-in must not stop the session, state %v", s.State())
	}
}

func TestStopClosesConnectionOnce(t *testing.T) {
	s, provider, _ := startTestSession(t, audio.NewNullDevice())
	conn := provider.LastConn()

	s.Stop()
	waitDone(t, s)

	if s.State() != StateStopped {
		t.Fatalf("expected stopped state, got %v", s.State())
	}
	if calls := conn.CloseCalls(); calls != 1 {
		t.Fatalf("expected connection closed exactly once, got %d", calls)
	}
	if err := s.SubmitAudio([]byte("late"), ""); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after stop, got %v", err)
	}
}

func TestReceiveFailureStopsSession(t *testing.T) {
	s, provider, emitter := startTestSession(t, audio.NewNullDevice())
	conn := provider.LastConn()

	conn.FailReceive(errors.New("stream torn"))
	waitDone(t, s)

	_, _, errs := emitter.snapshot()
	if !contains(errs, "receive error") {
		t.Fatalf("expected receive error event, got %v", errs)
	}
	if calls := conn.CloseCalls(); calls != 1 {
		t.Fatalf("expected connection closed exactly once, got %d", calls)
	}
}

func TestReceiveFailureReleasesDeviceStreams(t *testing.T) {
	device := &fakeDevice{capture: newFakeCaptureStream(), playback: &fakePlaybackStream{}}
	s, provider, _ := startTestSession(t, device)
	conn := provider.LastConn()

	conn.FailReceive(errors.New("stream torn"))
	waitDone(t, s)

	if calls := conn.CloseCalls(); calls != 1 {
		t.Fatalf("expected connection closed exactly once, got %d", calls)
	}
	if !device.capture.isClosed() {
		t.Fatal("capture stream not released on fault teardown")
	}
	if !device.playback.isClosed() {
		t.Fatal("playback stream not released on fault teardown")
	}
}

func TestSendFailureStopsSession(t *testing.T) {
	s, provider, emitter := startTestSession(t, audio.NewNullDevice())
	provider.LastConn().FailSend(errors.New("pipe broken"))

	if err := s.SubmitAudio([]byte("x"), ""); err != nil {
		t.Fatalf("submit audio: %v", err)
	}
	waitDone(t, s)

	_, _, errs := emitter.snapshot()
	if !contains(errs, "send error") {
		t.Fatalf("expected send error event, got %v", errs)
	}
}

func TestConnectFailure(t *testing.T) {
	provider := translate.NewMockProvider()
	provider.ConnectErr = errors.New("no route")
	emitter := &recordingEmitter{}
	s := newSession(context.Background(), "session-1", "client-1", "French", "female",
		provider, audio.NewNullDevice(), testAudioConfig(), emitter, testLogger())
	go s.run()
	waitDone(t, s)

	if s.State() != StateStopped {
		t.Fatalf("expected stopped state, got %v", s.State())
	}
	_, _, errs := emitter.snapshot()
	if !contains(errs, "translation connect failed") {
		t.Fatalf("expected connect failure event, got %v", errs)
	}
}

type blockingProvider struct{}

func (blockingProvider) Connect(ctx context.Context, _ translate.SessionConfig) (translate.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStopWhileConnecting(t *testing.T) {
	emitter := &recordingEmitter{}
	s := newSession(context.Background(), "session-1", "client-1", "French", "female",
		blockingProvider{}, audio.NewNullDevice(), testAudioConfig(), emitter, testLogger())
	go s.run()

	waitFor(t, "connecting state", func() bool { return s.State() == StateConnecting })
	s.Stop()
	waitDone(t, s)

	_, _, errs := emitter.snapshot()
	if len(errs) != 0 {
		t.Fatalf("stop during connect must not emit errors, got %v", errs)
	}
}

func TestDegradedCaptureAdvisesClient(t *testing.T) {
	_, _, emitter := startTestSession(t, audio.NewNullDevice())
	waitFor(t, "degraded status", func() bool {
		statuses, _, _ := emitter.snapshot()
		return contains(statuses, "audio capture unavailable")
	})
}

func TestCaptureFramesForwarded(t *testing.T) {
	device := &fakeDevice{capture: newFakeCaptureStream()}
	s, provider, _ := startTestSession(t, device)

	device.capture.frames <- []byte("micfram")
	waitFor(t, "captured frame relayed", func() bool {
		for _, frame := range provider.LastConn().Sent() {
			if string(frame.Data) == "micfram" {
				return true
			}
		}
		return false
	})

	s.Stop()
	waitDone(t, s)
	if !device.capture.isClosed() {
		t.Fatal("capture stream not closed on teardown")
	}
}

func TestPlaybackWritesInboundAudio(t *testing.T) {
	device := &fakeDevice{playback: &fakePlaybackStream{}}
	_, provider, _ := startTestSession(t, device)

	provider.LastConn().Emit(translate.Event{Audio: []byte{9, 9, 9}})
	waitFor(t, "audio played", func() bool { return len(device.playback.written()) > 0 })
}
