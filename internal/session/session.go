// Package session orchestrates one live translation pipeline per connected
// client: a bounded outbound audio queue feeding the remote connection, an
// unbounded inbound queue feeding local playback, and four cooperative duties
// (capture, send, receive, playback) supervised by a per-session goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/linguaflow/lingua-core/internal/audio"
	"github.com/linguaflow/lingua-core/internal/config"
	"github.com/linguaflow/lingua-core/internal/translate"
)

// State is the session lifecycle phase.
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// outboundDepth bounds the queue of frames awaiting send to the remote
// connection; producers suspend when it is full so capture throttles to
// consumer speed.
const outboundDepth = 5

const pcmMIME = "audio/pcm"

// Session is the live orchestration object for one client's translation
// request, from connect to teardown. It owns its queues and its remote
// connection; the registry owns its existence.
type Session struct {
	id       string
	clientID string
	language string
	gender   string

	provider translate.Provider
	device   audio.Device
	audioCfg config.AudioConfig
	emit     Emitter
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32

	outbound chan translate.Frame
	inbound  *frameQueue

	connMu    sync.Mutex
	conn      translate.Conn
	connClose sync.Once

	done chan struct{}
}

func newSession(parent context.Context, id, clientID, language, gender string,
	provider translate.Provider, device audio.Device, audioCfg config.AudioConfig,
	emit Emitter, log *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:       id,
		clientID: clientID,
		language: language,
		gender:   gender,
		provider: provider,
		device:   device,
		audioCfg: audioCfg,
		emit:     emit,
		log: log.With(
			slog.String("component", "session"),
			slog.String("session_id", id),
			slog.String("client_id", clientID),
		),
		ctx:      ctx,
		cancel:   cancel,
		outbound: make(chan translate.Frame, outboundDepth),
		inbound:  newFrameQueue(),
		done:     make(chan struct{}),
	}
	s.state.Store(int32(StateCreated))
	return s
}

func (s *Session) ID() string       { return s.id }
func (s *Session) ClientID() string { return s.clientID }
func (s *Session) Language() string { return s.language }
func (s *Session) Gender() string   { return s.gender }

// State returns the current lifecycle phase.
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once teardown has completed and all duties have returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// PendingPlayback reports the number of inbound frames awaiting playback.
func (s *Session) PendingPlayback() int { return s.inbound.Len() }

// Stop requests teardown. It returns immediately; duties observe the
// cancellation at their next suspension point and Done is closed once every
// duty has exited.
func (s *Session) Stop() { s.requestStop() }

// SubmitAudio feeds a client-decoded audio chunk into the outbound queue.
// It shares the ordered pipe with locally captured audio and suspends while
// the bounded queue is full.
func (s *Session) SubmitAudio(data []byte, mime string) error {
	if mime == "" {
		mime = pcmMIME
	}
	select {
	case s.outbound <- translate.Frame{Data: data, MIME: mime}:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// run drives the state machine: Connecting, then Running with the four
// duties, then unconditional cleanup into Stopped on every exit path.
func (s *Session) run() {
	defer close(s.done)
	defer s.finish()

	s.state.Store(int32(StateConnecting))
	conn, err := s.provider.Connect(s.ctx, translate.SessionConfig{
		Language: s.language,
		Gender:   s.gender,
	})
	if err != nil {
		if s.ctx.Err() == nil {
			s.emit.Error(fmt.Sprintf("translation connect failed: %v", err))
			s.log.Warn("remote connect failed", slog.String("error", err.Error()))
		}
		return
	}

	s.connMu.Lock()
	s.conn = conn
	stopped := s.ctx.Err() != nil
	s.connMu.Unlock()
	if stopped {
		// Torn down while connecting; finish closes the connection.
		return
	}

	s.state.Store(int32(StateRunning))
	s.emit.Status(fmt.Sprintf("translation started for %s", s.language))
	s.log.Info("session running",
		slog.String("language", s.language),
		slog.String("gender", s.gender))

	duties := []struct {
		name string
		run  func() error
	}{
		{"capture", s.captureDuty},
		{"send", s.sendDuty},
		{"receive", s.receiveDuty},
		{"playback", s.playbackDuty},
	}

	faults := make(chan dutyFault, len(duties))
	var wg sync.WaitGroup
	for _, d := range duties {
		wg.Add(1)
		go func(name string, run func() error) {
			defer wg.Done()
			if err := run(); err != nil {
				faults <- dutyFault{duty: name, err: err}
			}
		}(d.name, d.run)
	}
	go func() {
		wg.Wait()
		close(faults)
	}()

	// Single boundary where duty results become outward error events. A
	// fault does not kill sibling duties directly; it requests stop and
	// they exit at their next suspension point.
	for fault := range faults {
		s.emit.Error(fmt.Sprintf("%s error: %v", fault.duty, fault.err))
		s.log.Warn("duty fault",
			slog.String("duty", fault.duty),
			slog.String("error", fault.err.Error()))
		s.requestStop()
	}
}

// requestStop flips the session into Stopping and unblocks every suspension
// point: the context for queue operations, the remote connection for a
// pinned receive, and the inbound queue for playback. Idempotent.
func (s *Session) requestStop() {
	s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	s.state.CompareAndSwap(int32(StateConnecting), int32(StateStopping))
	s.cancel()
	s.closeConn()
	s.inbound.Close()
}

// finish is the unconditional cleanup step: it runs on fault exits, connect
// failures, and normal stops alike, and is safe when some resources were
// never opened.
func (s *Session) finish() {
	s.cancel()
	s.closeConn()
	s.inbound.Close()
	s.state.Store(int32(StateStopped))
	s.log.Info("session stopped")
}

// closeConn closes the remote connection exactly once.
func (s *Session) closeConn() {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return
	}
	s.connClose.Do(func() {
		if err := conn.Close(); err != nil {
			s.log.Warn("closing remote connection", slog.String("error", err.Error()))
		}
	})
}

// captureDuty reads frames from the local input device into the outbound
// queue. Without a capture device it degrades to a no-op after advising the
// client.
func (s *Session) captureDuty() error {
	if !s.device.HasCapture() {
		s.emit.Status("audio capture unavailable; relaying client-submitted audio only")
		return nil
	}
	stream, err := s.device.OpenCapture(
		s.audioCfg.CaptureSampleRate,
		s.audioCfg.CaptureChannels,
		s.audioCfg.CaptureFrameBytes,
	)
	if err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			s.emit.Status("audio capture unavailable; relaying client-submitted audio only")
			return nil
		}
		return fmt.Errorf("open capture: %w", err)
	}
	defer stream.Close()
	// Unblock a pinned device read once stop is requested.
	stop := context.AfterFunc(s.ctx, func() { _ = stream.Close() })
	defer stop()

	buf := make([]byte, s.audioCfg.CaptureFrameBytes)
	for {
		if s.ctx.Err() != nil {
			return nil
		}
		n, err := stream.Read(buf)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read capture: %w", err)
		}
		if n == 0 {
			continue
		}
		frame := translate.Frame{Data: append([]byte(nil), buf[:n]...), MIME: pcmMIME}
		select {
		case s.outbound <- frame:
		case <-s.ctx.Done():
			return nil
		}
	}
}

// sendDuty forwards outbound frames to the remote connection in arrival
// order, whichever source produced them.
func (s *Session) sendDuty() error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case frame := <-s.outbound:
			if err := s.conn.Send(frame); err != nil {
				if s.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send frame: %w", err)
			}
		}
	}
}

// receiveDuty consumes the remote response stream. Text is emitted
// immediately and never queued; audio is queued for playback. After each
// completed response turn the inbound queue is drained so stale translation
// audio is abandoned when the user speaks again.
func (s *Session) receiveDuty() error {
	for {
		ev, err := s.conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		if ev.Text != "" {
			s.emit.Translation(ev.Text, s.language)
		}
		if len(ev.Audio) > 0 {
			s.inbound.Push(translate.Frame{Data: ev.Audio, MIME: pcmMIME})
		}
		if ev.TurnComplete {
			if n := s.inbound.DrainAll(); n > 0 {
				s.log.Debug("discarded unplayed audio after turn", slog.Int("frames", n))
			}
		}
		if s.ctx.Err() != nil {
			return nil
		}
	}
}

// playbackDuty writes inbound frames to the local output device; a no-op in
// degraded mode.
func (s *Session) playbackDuty() error {
	if !s.device.HasPlayback() {
		return nil
	}
	stream, err := s.device.OpenPlayback(
		s.audioCfg.PlaybackSampleRate,
		s.audioCfg.PlaybackChannels,
	)
	if err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			s.emit.Status("audio playback unavailable; translations delivered as text only")
			return nil
		}
		return fmt.Errorf("open playback: %w", err)
	}
	defer stream.Close()

	for {
		frame, ok := s.inbound.Pop()
		if !ok {
			return nil
		}
		if _, err := stream.Write(frame.Data); err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("write playback: %w", err)
		}
	}
}
