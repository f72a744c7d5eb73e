package audio

// NullDevice is the degraded-mode device: no capture, no playback.
type NullDevice struct{}

func NewNullDevice() NullDevice { return NullDevice{} }

func (NullDevice) HasCapture() bool  { return false }
func (NullDevice) HasPlayback() bool { return false }

func (NullDevice) OpenCapture(int, int, int) (CaptureStream, error) {
	return nil, ErrDeviceUnavailable
}

func (NullDevice) OpenPlayback(int, int) (PlaybackStream, error) {
	return nil, ErrDeviceUnavailable
}
