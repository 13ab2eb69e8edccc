package capture

import (
	"errors"
	"fmt"

	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

// ownerTag records which side of the kernel queue currently owns a buffer's
// memory. Plane addresses may only be read while the process owns the
// buffer; queueing transfers ownership to the kernel until the next
// dequeue.
type ownerTag uint8

const (
	ownerProcess ownerTag = iota
	ownerKernel
)

func (o ownerTag) String() string {
	if o == ownerKernel {
		return "kernel"
	}
	return "process"
}

// planeMapping is one mapped plane of a kernel buffer. data is nil and
// dmaFD is -1 once unmapped; both are reset immediately on release so a
// second release pass cannot double-unmap or double-close.
type planeMapping struct {
	length uint32
	data   []byte
	dmaFD  int
}

// bufferRecord is one entry of the buffer map table, indexed by the
// kernel-assigned buffer index. desc carries the kernel plane geometry and
// is re-sent on every queue operation.
type bufferRecord struct {
	index  uint32
	owner  ownerTag
	desc   v4l2.BufferDesc
	planes [v4l2.NV12MPlanes]planeMapping
}

// mapAll queries plane geometry for every granted buffer, maps each plane
// into the process, and exports DMA descriptors when configured. On error
// the caller tears down; records are pre-initialized with sentinel DMA
// descriptors so a partial failure never leaves a zero value that release
// would mistake for a real descriptor.
func (s *Session) mapAll() error {
	s.buffers = make([]bufferRecord, s.granted)
	for i := range s.buffers {
		s.buffers[i].index = uint32(i)
		s.buffers[i].owner = ownerProcess
		for p := range s.buffers[i].planes {
			s.buffers[i].planes[p].dmaFD = -1
		}
	}

	for i := range s.buffers {
		rec := &s.buffers[i]

		desc, err := s.dev.QueryBuffer(rec.index)
		if err != nil {
			return fmt.Errorf("%w: query buffer %d: %w", ErrMapFailed, i, err)
		}
		if len(desc.Planes) != v4l2.NV12MPlanes {
			return fmt.Errorf("%w: buffer %d reports %d planes, want %d",
				ErrMapFailed, i, len(desc.Planes), v4l2.NV12MPlanes)
		}
		rec.desc = desc

		for p := range desc.Planes {
			data, err := s.dev.MapPlane(desc.Planes[p].Offset, desc.Planes[p].Length)
			if err != nil {
				return fmt.Errorf("%w: map buffer %d plane %d: %w", ErrMapFailed, i, p, err)
			}
			rec.planes[p].data = data
			rec.planes[p].length = desc.Planes[p].Length

			if s.cfg.DMAExport {
				fd, err := s.dev.ExportBuffer(rec.index, p)
				if err != nil {
					return fmt.Errorf("%w: export buffer %d plane %d: %w", ErrMapFailed, i, p, err)
				}
				rec.planes[p].dmaFD = fd
			}
		}
	}
	return nil
}

// queueAll submits every buffer to the capture queue before streaming
// starts. The first rejection aborts the remaining submissions.
func (s *Session) queueAll() error {
	for i := range s.buffers {
		if err := s.queueBuffer(&s.buffers[i]); err != nil {
			return fmt.Errorf("%w: buffer %d: %w", ErrQueueFailed, i, err)
		}
	}
	return nil
}

// queueBuffer hands one buffer back to the kernel and flips its ownership
// tag. Queueing a buffer the kernel already owns is a protocol violation.
func (s *Session) queueBuffer(rec *bufferRecord) error {
	if rec.owner != ownerProcess {
		return fmt.Errorf("buffer %d is owned by the %s", rec.index, rec.owner)
	}
	if err := s.dev.Queue(rec.desc); err != nil {
		return err
	}
	rec.owner = ownerKernel
	return nil
}

// ReleaseAll unmaps every mapped plane, closes every exported DMA
// descriptor, and shrinks the kernel buffer allocation to zero. The kernel
// does not free capture buffers when the descriptor closes, so skipping the
// shrink leaks pinned kernel memory past process exit.
//
// Runs exactly once no matter how shutdown was triggered; later calls are
// no-ops. Release is best-effort: one failed unmap does not stop the rest.
func (s *Session) ReleaseAll() error {
	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for i := range s.buffers {
		rec := &s.buffers[i]
		for p := range rec.planes {
			pl := &rec.planes[p]
			if pl.data != nil {
				if err := s.unmap(pl.data); err != nil {
					errs = append(errs, fmt.Errorf("unmap buffer %d plane %d: %w", i, p, err))
				}
				pl.data = nil
			}
			if pl.dmaFD >= 0 {
				if err := s.closeFD(pl.dmaFD); err != nil {
					errs = append(errs, fmt.Errorf("close dma fd of buffer %d plane %d: %w", i, p, err))
				}
				pl.dmaFD = -1
			}
		}
	}

	if s.granted > 0 {
		if err := s.dev.ReleaseBuffers(); err != nil {
			errs = append(errs, fmt.Errorf("release kernel buffers: %w", err))
		}
	}

	if len(errs) > 0 {
		s.log.Warn("buffer release finished with errors", "errors", len(errs))
	}
	return errors.Join(errs...)
}
