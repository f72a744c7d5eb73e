package audio

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/linguaflow/lingua-core/internal/config"
)

// HardwareDevice captures through malgo (miniaudio) and plays through oto.
type HardwareDevice struct {
	ctx *malgo.AllocatedContext
	log *slog.Logger
}

// New selects a device implementation from config: the hardware device when
// audio is enabled and the backend initializes, otherwise the null device.
func New(cfg config.AudioConfig, log *slog.Logger) Device {
	if !cfg.Enabled {
		return NewNullDevice()
	}
	dev, err := NewHardwareDevice(log)
	if err != nil {
		log.Warn("audio hardware unavailable, running degraded",
			slog.String("error", err.Error()))
		return NewNullDevice()
	}
	return dev
}

func NewHardwareDevice(log *slog.Logger) (*HardwareDevice, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &HardwareDevice{
		ctx: mctx,
		log: log.With(slog.String("component", "audio-device")),
	}, nil
}

func (d *HardwareDevice) HasCapture() bool  { return true }
func (d *HardwareDevice) HasPlayback() bool { return true }

// Release tears down the shared backend context. Open streams must be closed
// first.
func (d *HardwareDevice) Release() {
	_ = d.ctx.Uninit()
	d.ctx.Free()
}

func (d *HardwareDevice) OpenCapture(sampleRate, channels, frameSize int) (CaptureStream, error) {
	cs := &captureStream{}
	cs.cond = sync.NewCond(&cs.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			cs.mu.Lock()
			cs.buf = append(cs.buf, samples...)
			cs.mu.Unlock()
			cs.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(d.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: init capture: %v", ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: start capture: %v", ErrDeviceUnavailable, err)
	}
	cs.device = device
	return cs, nil
}

func (d *HardwareDevice) OpenPlayback(sampleRate, channels int) (PlaybackStream, error) {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init playback: %v", ErrDeviceUnavailable, err)
	}
	<-ready

	ps := &playbackStream{otoCtx: otoCtx}
	ps.cond = sync.NewCond(&ps.mu)
	return ps, nil
}

// captureStream buffers callback-delivered PCM behind a blocking Read.
type captureStream struct {
	device *malgo.Device
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func (c *captureStream) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) == 0 && !c.closed {
		c.cond.Wait()
	}
	if c.closed {
		return 0, io.EOF
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *captureStream) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
	}
	return nil
}

// playbackStream feeds an oto player from a blocking buffer. The player is
// created lazily on first write.
type playbackStream struct {
	otoCtx *oto.Context
	player *oto.Player
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func (p *playbackStream) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.buf = append(p.buf, data...)
	if p.player == nil {
		p.player = p.otoCtx.NewPlayer(p)
		p.player.Play()
	}
	p.cond.Signal()
	return len(data), nil
}

// Read implements io.Reader for the oto player pull loop.
func (p *playbackStream) Read(out []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.buf) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed && len(p.buf) == 0 {
		// Feed silence so oto drains gracefully.
		for i := range out {
			out[i] = 0
		}
		return len(out), nil
	}
	n := copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *playbackStream) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cond.Broadcast()
	player := p.player
	p.player = nil
	p.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}
