package display

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/icza/mjpeg"

	"github.com/smazurov/viewfinder/internal/clock"
	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/internal/logging"
)

// Recorder appends preview JPEGs to an MJPEG AVI. The file is created on
// the first frame, so an aborted run before any capture leaves nothing
// behind.
type Recorder struct {
	path   string
	width  int
	height int
	fps    int
	log    *slog.Logger
	bus    *events.Bus

	aw     mjpeg.AviWriter
	frames atomic.Uint64

	// Indirected for tests; the default queries NTP over the network.
	clockCheck func()
}

func NewRecorder(path string, width, height, fps int, bus *events.Bus) *Recorder {
	r := &Recorder{
		path:   path,
		width:  width,
		height: height,
		fps:    fps,
		log:    logging.GetLogger("display"),
		bus:    bus,
	}
	r.clockCheck = r.warnIfClockSkewed
	return r
}

// Add appends one encoded frame, creating the AVI on first use.
func (r *Recorder) Add(frame []byte) error {
	if r.aw == nil {
		aw, err := mjpeg.New(r.path, int32(r.width), int32(r.height), int32(r.fps))
		if err != nil {
			return fmt.Errorf("create %s: %w", r.path, err)
		}
		r.aw = aw
		r.log.Info("recording started",
			"path", r.path, "width", r.width, "height", r.height, "fps", r.fps)
		go r.clockCheck()
		r.publish(events.RecordingStartedEvent{
			Path:      r.path,
			Width:     uint32(r.width),
			Height:    uint32(r.height),
			FPS:       r.fps,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
	if err := r.aw.AddFrame(frame); err != nil {
		return fmt.Errorf("append frame to %s: %w", r.path, err)
	}
	r.frames.Add(1)
	return nil
}

// Frames is the number of frames written so far. Safe to read while the
// render loop is still appending.
func (r *Recorder) Frames() uint64 {
	return r.frames.Load()
}

// Close finalizes the AVI index. Safe to call without any frame written
// and safe to call twice.
func (r *Recorder) Close() error {
	if r.aw == nil {
		return nil
	}
	err := r.aw.Close()
	r.aw = nil

	size := "unknown"
	if st, statErr := os.Stat(r.path); statErr == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}
	frames := r.frames.Load()
	r.log.Info("recording finished", "path", r.path, "frames", frames, "size", size)
	r.publish(events.RecordingStoppedEvent{
		Path:      r.path,
		Frames:    frames,
		Size:      size,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return err
}

// Recording filenames and AVI timestamps come from the wall clock; warn
// when it visibly disagrees with NTP. Runs off the render path because it
// talks to the network.
func (r *Recorder) warnIfClockSkewed() {
	offset, err := clock.Offset(clock.DefaultServer)
	if err != nil {
		r.log.Debug("clock check skipped", "error", err)
		return
	}
	if clock.Skewed(offset, clock.DefaultTolerance) {
		r.log.Warn("system clock disagrees with ntp, recording timestamps may be wrong",
			"offset", offset.String(), "server", clock.DefaultServer)
	}
}

func (r *Recorder) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}
