// Package audio owns capture of fixed-size PCM frames from the microphone.
package audio

import (
	"context"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lokutor-ai/localvoice-agent/pkg/apperrors"
	"github.com/lokutor-ai/localvoice-agent/pkg/logging"
)

const (
	// SampleRate is the fixed capture rate the rest of the core assumes.
	SampleRate = 16000
	// FrameSamples is exactly 30ms of audio at SampleRate.
	FrameSamples = 480
	// FrameBytes is FrameSamples of signed 16-bit mono PCM.
	FrameBytes = FrameSamples * 2
)

// Frame is exactly 30ms of 16kHz mono 16-bit PCM. Never partial.
type Frame []byte

// Samples returns the frame's samples as signed 16-bit values.
func (f Frame) Samples() []int16 {
	out := make([]int16, len(f)/2)
	for i := range out {
		out[i] = int16(f[2*i]) | int16(f[2*i+1])<<8
	}
	return out
}

// RMS computes root-mean-square amplitude over the frame, normalized to [-1,1].
func (f Frame) RMS() float64 {
	samples := f.Samples()
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// FrameSource delivers fixed-size frames from an open capture stream.
type FrameSource interface {
	// Read blocks until a complete frame is available, or returns
	// apperrors.ErrDeviceLost (fatal) or a recoverable error.
	Read(ctx context.Context) (Frame, error)
	// Close releases the underlying device. Idempotent.
	Close() error
}

// DeviceSource wraps a malgo duplex device, accumulating the driver's
// callback bytes into a ring and handing out exact-sized frames.
type DeviceSource struct {
	mu       sync.Mutex
	buf      []byte
	frames   chan Frame
	lost     chan struct{}
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	closeMu  sync.Mutex
	closed   bool
	maxBytes int
	log      logging.Logger

	playMu  sync.Mutex
	playBuf []byte
}

// OpenDeviceSource opens a duplex capture/playback device at SampleRate and
// returns a guard whose Close is idempotent. Playback writes are exposed via
// WritePlayback for the TTS output path sharing the same device. A nil
// logger is replaced with a no-op logger.
func OpenDeviceSource(log logging.Logger) (*DeviceSource, error) {
	if log == nil {
		log = &logging.NoOpLogger{}
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, apperrors.ErrDeviceLost
	}

	s := &DeviceSource{
		frames:   make(chan Frame, 64),
		lost:     make(chan struct{}),
		mctx:     mctx,
		maxBytes: FrameBytes * 200, // ~6s accumulator ceiling before overflow drop
		log:      log,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return nil, apperrors.ErrDeviceLost
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, apperrors.ErrDeviceLost
	}

	return s, nil
}

func (s *DeviceSource) onSamples(pOutput, pInput []byte, frameCount uint32) {
	if pInput != nil {
		s.mu.Lock()
		s.buf = append(s.buf, pInput...)
		// Overflow tolerance: drop oldest bytes rather than error.
		if len(s.buf) > s.maxBytes {
			excess := len(s.buf) - s.maxBytes
			s.buf = s.buf[excess:]
			s.log.Warn("capture buffer overflow, dropping oldest samples", "error", apperrors.ErrStreamOverflow)
		}
		for len(s.buf) >= FrameBytes {
			frame := make(Frame, FrameBytes)
			copy(frame, s.buf[:FrameBytes])
			s.buf = s.buf[FrameBytes:]
			select {
			case s.frames <- frame:
			default:
				// Channel full: drop oldest pending frame to make room.
				select {
				case <-s.frames:
				default:
				}
				select {
				case s.frames <- frame:
				default:
				}
			}
		}
		s.mu.Unlock()
	}

	if pOutput == nil {
		return
	}
	s.playMu.Lock()
	n := copy(pOutput, s.playBuf)
	s.playBuf = s.playBuf[n:]
	s.playMu.Unlock()
	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

// WritePlayback queues pcm (SampleRate, mono, 16-bit) to be drained out the
// device's playback side by onSamples. Safe to call from any goroutine.
func (s *DeviceSource) WritePlayback(pcm []byte) error {
	s.closeMu.Lock()
	closed := s.closed
	s.closeMu.Unlock()
	if closed {
		return apperrors.ErrDeviceLost
	}

	s.playMu.Lock()
	defer s.playMu.Unlock()
	s.playBuf = append(s.playBuf, pcm...)
	if max := FrameBytes * 200; len(s.playBuf) > max {
		s.log.Warn("playback buffer overflow, dropping oldest samples", "error", apperrors.ErrStreamOverflow)
		s.playBuf = s.playBuf[len(s.playBuf)-max:]
	}
	return nil
}

// Read implements FrameSource.
func (s *DeviceSource) Read(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return nil, apperrors.ErrDeviceLost
		}
		return f, nil
	case <-s.lost:
		return nil, apperrors.ErrDeviceLost
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the device. Safe to call more than once.
func (s *DeviceSource) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.device != nil {
		s.device.Uninit()
	}
	if s.mctx != nil {
		s.mctx.Uninit()
	}
	close(s.lost)
	return nil
}
