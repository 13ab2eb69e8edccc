// Package capture owns the V4L2 buffer lifecycle: negotiating kernel buffer
// allocation, mapping planes into the process, the dequeue/render/requeue
// loop, and the guaranteed release of kernel buffers on every exit path.
//
// A Session and its device handle belong to one goroutine from Setup to
// Shutdown. The only cross-goroutine entry points are RequestStop, which
// flips an atomic flag the loop checks once per iteration, and Stats.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/internal/logging"
	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

// videoDevice is the slice of *v4l2.Device the session drives. Tests
// substitute a scripted fake.
type videoDevice interface {
	Path() string
	SetFormatNV12M(width, height uint32) (v4l2.Format, error)
	RequestBuffers(count uint32) (uint32, error)
	ReleaseBuffers() error
	QueryBuffer(index uint32) (v4l2.BufferDesc, error)
	ExportBuffer(index uint32, plane int) (int, error)
	MapPlane(offset, length uint32) ([]byte, error)
	Queue(desc v4l2.BufferDesc) error
	Dequeue() (v4l2.Frame, error)
	StreamOn() error
	StreamOff() error
	Close() error
}

// Config selects the capture geometry and buffer strategy.
type Config struct {
	Width     uint32
	Height    uint32
	Buffers   uint32
	DMAExport bool
}

// Session owns the capture device, the buffer map table, and the streaming
// state. The table is immutable between Setup and ReleaseAll except for the
// per-buffer ownership tags that track the kernel handoff.
type Session struct {
	dev videoDevice
	cfg Config
	log *slog.Logger
	bus *events.Bus

	format  v4l2.Format
	granted uint32
	buffers []bufferRecord
	view    FrameView

	streaming atomic.Bool
	released  bool
	stop      atomic.Bool
	frames    atomic.Uint64

	// Indirected for tests; production sessions unmap and close through
	// the v4l2 package.
	unmap   func([]byte) error
	closeFD func(int) error
}

// OpenDevice opens and validates the capture device, classifying failures
// into the capture error taxonomy.
func OpenDevice(path string) (*v4l2.Device, error) {
	dev, err := v4l2.OpenDevice(path)
	if err != nil {
		var missing *v4l2.MissingCapabilityError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %w", ErrCapabilityMissing, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	return dev, nil
}

// OpenSubdevice opens the sensor control node. Sub-devices answer no
// capture capability query, so only the open itself can fail.
func OpenSubdevice(path string) (*v4l2.Subdevice, error) {
	sub, err := v4l2.OpenSubdevice(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	return sub, nil
}

// NewSession wraps an open device. bus may be nil to disable events.
func NewSession(dev *v4l2.Device, cfg Config, bus *events.Bus) *Session {
	return newSession(dev, cfg, bus)
}

func newSession(dev videoDevice, cfg Config, bus *events.Bus) *Session {
	return &Session{
		dev:     dev,
		cfg:     cfg,
		log:     logging.GetLogger("capture"),
		bus:     bus,
		unmap:   v4l2.UnmapPlane,
		closeFD: v4l2.CloseFD,
	}
}

// Setup runs the whole allocation protocol: format negotiation, buffer
// request, plane mapping, pre-queueing, and stream start. Any failure tears
// down whatever was partially acquired before the error returns, so no
// kernel resources stay outstanding on the error path.
func (s *Session) Setup() error {
	if err := s.negotiate(); err != nil {
		s.teardownAfterFailure()
		return err
	}
	if err := s.mapAll(); err != nil {
		s.teardownAfterFailure()
		return err
	}
	if err := s.queueAll(); err != nil {
		s.teardownAfterFailure()
		return err
	}
	if err := s.StartStreaming(); err != nil {
		s.teardownAfterFailure()
		return err
	}

	s.initView()
	s.log.Info("capture streaming",
		"device", s.dev.Path(),
		"width", s.format.Width,
		"height", s.format.Height,
		"buffers", s.granted,
		"dma_export", s.cfg.DMAExport)
	s.publish(events.CaptureStartedEvent{
		DevicePath: s.dev.Path(),
		Width:      s.format.Width,
		Height:     s.format.Height,
		Buffers:    s.granted,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// negotiate fixes the two-plane layout and asks for kernel buffers. The
// driver may adjust geometry and grant a different buffer count; both
// results are recorded and used downstream in place of the request.
func (s *Session) negotiate() error {
	format, err := s.dev.SetFormatNV12M(s.cfg.Width, s.cfg.Height)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceRejected, err)
	}
	if format.PixelFormat != v4l2.PixFmtNV12M || format.NumPlanes != v4l2.NV12MPlanes {
		return fmt.Errorf("%w: driver substituted %s with %d planes",
			ErrDeviceRejected, v4l2.FormatFourCC(format.PixelFormat), format.NumPlanes)
	}
	if format.Width != s.cfg.Width || format.Height != s.cfg.Height {
		s.log.Warn("driver adjusted geometry",
			"requested_width", s.cfg.Width, "requested_height", s.cfg.Height,
			"width", format.Width, "height", format.Height)
	}
	s.format = format

	granted, err := s.dev.RequestBuffers(s.cfg.Buffers)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceRejected, err)
	}
	if granted == 0 {
		return fmt.Errorf("%w: device granted zero buffers", ErrDeviceRejected)
	}
	if granted > v4l2.MaxFrameBuffers {
		granted = v4l2.MaxFrameBuffers
	}
	if granted != s.cfg.Buffers {
		s.log.Warn("buffer count adjusted by driver",
			"requested", s.cfg.Buffers, "granted", granted)
	}
	s.granted = granted
	return nil
}

// StartStreaming turns kernel streaming on.
func (s *Session) StartStreaming() error {
	if s.streaming.Load() {
		return nil
	}
	if err := s.dev.StreamOn(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceRejected, err)
	}
	s.streaming.Store(true)
	return nil
}

// StopStreaming turns kernel streaming off, returning every queued buffer
// to the driver's free pool. Idempotent, and tolerates a session that never
// started streaming.
func (s *Session) StopStreaming() error {
	if !s.streaming.Load() {
		return nil
	}
	s.streaming.Store(false)
	for i := range s.buffers {
		s.buffers[i].owner = ownerProcess
	}
	if err := s.dev.StreamOff(); err != nil {
		return fmt.Errorf("stream off: %w", err)
	}
	return nil
}

// Shutdown is the single teardown path: stop streaming, release every
// buffer, close the device. Safe to call more than once.
func (s *Session) Shutdown() error {
	var errs []error
	if err := s.StopStreaming(); err != nil {
		errs = append(errs, err)
	}
	if err := s.ReleaseAll(); err != nil {
		errs = append(errs, err)
	}
	if err := s.dev.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close device: %w", err))
	}
	return errors.Join(errs...)
}

// teardownAfterFailure cleans up a partially-acquired setup. The triggering
// error is what the caller reports; cleanup errors are only logged.
func (s *Session) teardownAfterFailure() {
	if err := s.StopStreaming(); err != nil {
		s.log.Warn("stop streaming during teardown", "error", err)
	}
	if err := s.ReleaseAll(); err != nil {
		s.log.Warn("release during teardown", "error", err)
	}
}

// RequestStop asks the loop to terminate after its current iteration. Safe
// to call from any goroutine, including the signal watcher; it only flips a
// flag and never touches kernel resources.
func (s *Session) RequestStop() {
	s.stop.Store(true)
}

func (s *Session) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// Stats is a point-in-time snapshot for metrics collection.
type Stats struct {
	DevicePath string
	Width      uint32
	Height     uint32
	Buffers    uint32
	Frames     uint64
	Streaming  bool
	DMAExport  bool
}

// Stats may be called from other goroutines while the loop runs.
func (s *Session) Stats() Stats {
	return Stats{
		DevicePath: s.dev.Path(),
		Width:      s.format.Width,
		Height:     s.format.Height,
		Buffers:    s.granted,
		Frames:     s.frames.Load(),
		Streaming:  s.streaming.Load(),
		DMAExport:  s.cfg.DMAExport,
	}
}
