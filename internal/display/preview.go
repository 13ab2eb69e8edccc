// Package display turns dequeued NV12 frames into something a person can
// look at: an MJPEG HTTP preview, an optional AVI recording, and raw-mode
// keyboard input feeding the control state machines. It is the one
// Renderer variant shipped with this core; the interface it implements
// keeps GPU or DRM render paths possible without touching the capture
// loop.
package display

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/viewfinder/internal/capture"
	"github.com/smazurov/viewfinder/internal/controls"
	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/internal/logging"
)

const (
	DefaultFPS         = 30
	DefaultJPEGQuality = 85
)

// Config selects preview pacing and optional recording.
type Config struct {
	FPS         int
	JPEGQuality int
	RecordPath  string
}

// Preview implements capture.Renderer. Prime, PollInput and Render run on
// the capture loop goroutine; the stats accessors and the FrameStore are
// safe for HTTP handler goroutines.
type Preview struct {
	log   *slog.Logger
	cfg   Config
	ctrl  *controls.Controller
	kb    *Keyboard
	bus   *events.Bus
	store *FrameStore

	img  *image.YCbCr
	buf  bytes.Buffer
	pace *time.Ticker
	quit bool

	mu  sync.Mutex
	rec *Recorder
}

var _ capture.Renderer = (*Preview)(nil)

// NewPreview builds the renderer. ctrl and kb may be nil: without a
// sub-device there are no control keys, without a terminal there is no
// keyboard at all.
func NewPreview(cfg Config, ctrl *controls.Controller, kb *Keyboard, bus *events.Bus) *Preview {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	return &Preview{
		log:   logging.GetLogger("display"),
		cfg:   cfg,
		ctrl:  ctrl,
		kb:    kb,
		bus:   bus,
		store: NewFrameStore(),
	}
}

// Store exposes the latest-frame buffer for the HTTP preview handlers.
func (p *Preview) Store() *FrameStore {
	return p.store
}

// Prime sizes the conversion image from a representative buffer and starts
// the pacing clock. The pixel content of the primer is irrelevant.
func (p *Preview) Prime(view capture.FrameView) error {
	w, h := int(view.Width), int(view.Height)
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("unsupported geometry %dx%d", w, h)
	}
	if len(view.Planes) < 2 {
		return fmt.Errorf("expected 2 planes, got %d", len(view.Planes))
	}

	p.img = image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	p.pace = time.NewTicker(time.Second / time.Duration(p.cfg.FPS))
	if p.cfg.RecordPath != "" {
		p.setRecorder(NewRecorder(p.cfg.RecordPath, w, h, p.cfg.FPS, p.bus))
	}

	p.log.Info("preview ready",
		"width", w, "height", h, "fps", p.cfg.FPS,
		"quality", p.cfg.JPEGQuality, "recording", p.cfg.RecordPath != "")
	return nil
}

// PollInput drains pending keys and applies queued control requests. Runs
// before every render so control writes stay on the loop goroutine.
func (p *Preview) PollInput() error {
	if p.kb != nil {
	drain:
		for {
			select {
			case key := <-p.kb.Events():
				p.handleKey(key)
			default:
				break drain
			}
		}
	}
	if p.ctrl != nil {
		p.ctrl.Drain()
	}
	return nil
}

func (p *Preview) handleKey(key byte) {
	if key == 'q' {
		p.quit = true
		p.log.Info("quit requested")
		return
	}
	if p.ctrl != nil && p.ctrl.HandleKey(key) {
		return
	}
	p.log.Debug("unbound key", "key", string(rune(key)))
}

// Render converts, encodes, publishes, and paces one frame. The NV12 copy
// into the owned image is the synchronous upload that makes requeueing the
// kernel buffer safe. Returns done when a quit key was seen.
func (p *Preview) Render(view capture.FrameView) (bool, error) {
	if p.quit {
		return true, nil
	}
	if len(view.Planes) < 2 || len(view.Planes[0]) == 0 || len(view.Planes[1]) == 0 {
		return false, fmt.Errorf("frame %d: invalid handoff with %d planes", view.Sequence, len(view.Planes))
	}

	if err := fillYCbCr(p.img, view.Planes[0], view.Planes[1],
		int(view.Strides[0]), int(view.Strides[1])); err != nil {
		return false, fmt.Errorf("frame %d: %w", view.Sequence, err)
	}
	p.buf.Reset()
	if err := jpeg.Encode(&p.buf, p.img, &jpeg.Options{Quality: p.cfg.JPEGQuality}); err != nil {
		return false, fmt.Errorf("encode frame %d: %w", view.Sequence, err)
	}

	frame := bytes.Clone(p.buf.Bytes())
	p.store.Set(frame)

	if rec := p.recorder(); rec != nil {
		if err := rec.Add(frame); err != nil {
			// A dead recording degrades the run, it does not end it.
			p.log.Warn("recording failed, disabling", "error", err)
			if cerr := rec.Close(); cerr != nil {
				p.log.Warn("closing failed recording", "error", cerr)
			}
			p.setRecorder(nil)
		}
	}

	if p.pace != nil {
		<-p.pace.C
	}
	return false, nil
}

// Close stops pacing, finalizes any recording, and restores the terminal.
func (p *Preview) Close() error {
	var errs []error
	if p.pace != nil {
		p.pace.Stop()
	}
	if rec := p.recorder(); rec != nil {
		if err := rec.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recording: %w", err))
		}
	}
	if p.kb != nil {
		if err := p.kb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("restore terminal: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Recording reports whether an AVI is being written. Safe off the loop
// goroutine.
func (p *Preview) Recording() bool {
	return p.recorder() != nil
}

// RecordedFrames is the number of frames written to the AVI so far.
func (p *Preview) RecordedFrames() uint64 {
	if rec := p.recorder(); rec != nil {
		return rec.Frames()
	}
	return 0
}

func (p *Preview) recorder() *Recorder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rec
}

func (p *Preview) setRecorder(rec *Recorder) {
	p.mu.Lock()
	p.rec = rec
	p.mu.Unlock()
}
