package capture

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

// FrameView exposes one dequeued buffer to a renderer. Planes alias kernel
// memory mapped into the process; the view is valid only until Render
// returns, after which the buffer goes back to the kernel and the planes
// may be overwritten at any time. Renderers that need the pixels later
// must copy.
type FrameView struct {
	Index    uint32
	Width    uint32
	Height   uint32
	Sequence uint32
	Planes   [][]byte
	Strides  []uint32
}

// Renderer consumes frames from the capture loop.
//
// Prime is called once before the first frame with a view of buffer 0 so
// the renderer can size its output surface; the pixel content at that
// point is whatever the driver left in the mapping. PollInput runs at the
// top of every iteration, before the blocking dequeue, and its error
// aborts the loop. Render returning done=true ends the loop cleanly
// without requeueing the final buffer; stream-off reclaims it.
type Renderer interface {
	Prime(view FrameView) error
	PollInput() error
	Render(view FrameView) (done bool, err error)
}

// initView builds the reusable view once streaming starts. Per-frame state
// (index, sequence, plane slices) is rewritten on each dequeue.
func (s *Session) initView() {
	s.view = FrameView{
		Width:   s.format.Width,
		Height:  s.format.Height,
		Planes:  make([][]byte, s.format.NumPlanes),
		Strides: make([]uint32, s.format.NumPlanes),
	}
	for i := 0; i < s.format.NumPlanes; i++ {
		s.view.Strides[i] = s.format.PlaneStrides[i]
	}
}

// fillView points the reusable view at one buffer's mappings. BytesUsed
// from the dequeue bounds each plane; a driver reporting zero gets the
// full mapped length.
func (s *Session) fillView(rec *bufferRecord, frame v4l2.Frame) *FrameView {
	s.view.Index = rec.index
	s.view.Sequence = frame.Sequence
	for i := 0; i < s.format.NumPlanes; i++ {
		n := frame.BytesUsed[i]
		if n == 0 || n > rec.planes[i].length {
			n = rec.planes[i].length
		}
		s.view.Planes[i] = rec.planes[i].data[:n]
	}
	return &s.view
}

// Run drives the dequeue/render/requeue loop until the renderer finishes,
// a frame limit is reached, a stop is requested, or the device fails.
// limit of zero means unlimited. The caller still owns teardown; Run never
// releases buffers itself.
func (s *Session) Run(r Renderer, limit uint64) error {
	if !s.streaming.Load() || len(s.buffers) == 0 {
		return errors.New("capture loop requires a running stream")
	}

	if err := r.Prime(*s.fillView(&s.buffers[0], v4l2.Frame{})); err != nil {
		return fmt.Errorf("renderer prime: %w", err)
	}

	for {
		if s.stop.Load() {
			s.publishStopped("signal", nil)
			return nil
		}
		if limit > 0 && s.frames.Load() >= limit {
			s.publishStopped("limit", nil)
			return nil
		}
		if err := r.PollInput(); err != nil {
			err = fmt.Errorf("input poll: %w", err)
			s.publishStopped("error", err)
			return err
		}

		frame, err := s.dev.Dequeue()
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			err = fmt.Errorf("%w: %w", ErrIOFailed, err)
			s.publishStopped("error", err)
			return err
		}
		if frame.Index >= s.granted {
			err := fmt.Errorf("%w: dequeued unknown buffer index %d", ErrIOFailed, frame.Index)
			s.publishStopped("error", err)
			return err
		}

		rec := &s.buffers[frame.Index]
		rec.owner = ownerProcess

		done, err := r.Render(*s.fillView(rec, frame))
		if err != nil {
			err = fmt.Errorf("render frame %d: %w", frame.Sequence, err)
			s.publishStopped("error", err)
			return err
		}
		s.frames.Add(1)
		if done {
			s.publishStopped("renderer", nil)
			return nil
		}

		if err := s.queueBuffer(rec); err != nil {
			err = fmt.Errorf("%w: %w", ErrIOFailed, err)
			s.publishStopped("error", err)
			return err
		}
	}
}

func (s *Session) publishStopped(reason string, cause error) {
	s.log.Info("capture stopped",
		"device", s.dev.Path(),
		"frames", s.frames.Load(),
		"reason", reason)
	ev := events.CaptureStoppedEvent{
		DevicePath: s.dev.Path(),
		Frames:     s.frames.Load(),
		Reason:     reason,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	s.publish(ev)
}
