// Package controls runs the sensor-side state machines: focus mode and test
// pattern. Requests arrive from the keyboard reader or the HTTP API on a
// buffered queue and are drained on the capture loop goroutine before each
// render, so every sub-device write happens from the single thread that owns
// the capture pipeline.
//
// A rejected control write degrades focus or pattern behavior but never
// stops capture: the rejection is logged, published on the bus, and the
// state machine keeps the requested state so the operator's intent survives
// a transiently busy sensor.
package controls

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/internal/logging"
	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

// Writer is the slice of *v4l2.Subdevice the controller needs.
type Writer interface {
	SetControl(id uint32, value int32) error
}

// Request is one queued control action.
type Request uint8

const (
	ReqFocusAuto Request = iota + 1
	ReqFocusSingle
	ReqFocusPause
	ReqPatternCycle
	ReqPatternLive
	ReqHelp
	reqPatternSet // carries an explicit pattern value
)

type command struct {
	req   Request
	value int
}

// pendingSize bounds the control queue; a full queue drops the request
// rather than block the producer.
const pendingSize = 16

// Controller owns both sub-machines and the sub-device control channel.
type Controller struct {
	sub Writer
	log *slog.Logger
	bus *events.Bus

	mu      sync.Mutex
	focus   FocusMode
	pattern int

	pending chan command
}

// NewController wraps an open sub-device. The focus machine starts in
// FocusAuto, matching a sensor that boots with continuous auto-focus
// configured; the pattern starts on live output. bus may be nil.
func NewController(sub Writer, bus *events.Bus) *Controller {
	return &Controller{
		sub:     sub,
		log:     logging.GetLogger("controls"),
		bus:     bus,
		focus:   FocusAuto,
		pattern: PatternLive,
		pending: make(chan command, pendingSize),
	}
}

// HandleKey is the keyboard callback contract: one call per recognized
// single-key press. The quit key is deliberately absent, the display owns
// loop termination.
func (c *Controller) HandleKey(key byte) bool {
	switch key {
	case 'a':
		return c.Enqueue(ReqFocusAuto)
	case 'f':
		return c.Enqueue(ReqFocusSingle)
	case 'p':
		return c.Enqueue(ReqFocusPause)
	case 't':
		return c.Enqueue(ReqPatternCycle)
	case 'l':
		return c.Enqueue(ReqPatternLive)
	case 'h':
		return c.Enqueue(ReqHelp)
	}
	return false
}

// Enqueue queues a request without blocking. A full queue drops the
// request and reports false.
func (c *Controller) Enqueue(req Request) bool {
	select {
	case c.pending <- command{req: req}:
		return true
	default:
		c.log.Warn("control queue full, request dropped", "request", int(req))
		return false
	}
}

// EnqueuePattern queues an explicit pattern selection.
func (c *Controller) EnqueuePattern(value int) bool {
	if !validPattern(value) {
		return false
	}
	select {
	case c.pending <- command{req: reqPatternSet, value: value}:
		return true
	default:
		c.log.Warn("control queue full, request dropped", "pattern", value)
		return false
	}
}

// Drain applies every queued request. Called on the capture loop goroutine
// once per frame, before the render step.
func (c *Controller) Drain() {
	for {
		select {
		case cmd := <-c.pending:
			c.apply(cmd)
		default:
			return
		}
	}
}

func (c *Controller) apply(cmd command) {
	switch cmd.req {
	case ReqFocusAuto:
		c.requestFocus(FocusAuto)
	case ReqFocusSingle:
		c.requestFocus(FocusSingleShot)
	case ReqFocusPause:
		c.requestFocus(FocusPaused)
	case ReqPatternCycle:
		c.cyclePattern()
	case ReqPatternLive:
		c.setPattern(PatternLive)
	case reqPatternSet:
		if validPattern(cmd.value) {
			c.setPattern(cmd.value)
		}
	case ReqHelp:
		c.log.Info("keys: a=toggle auto focus f=single focus p=pause focus t=cycle test pattern l=live view h=help q=quit")
	}
}

// EnqueueFocus queues a focus request by target state. FocusIdle is not a
// requestable state, only a result of toggling auto off.
func (c *Controller) EnqueueFocus(mode FocusMode) bool {
	switch mode {
	case FocusAuto:
		return c.Enqueue(ReqFocusAuto)
	case FocusSingleShot:
		return c.Enqueue(ReqFocusSingle)
	case FocusPaused:
		return c.Enqueue(ReqFocusPause)
	}
	return false
}

func (c *Controller) requestFocus(requested FocusMode) {
	c.mu.Lock()
	current := c.focus
	next, write, issue := focusTransition(current, requested)
	c.focus = next
	c.mu.Unlock()

	if !issue {
		if next != current {
			c.log.Warn("focus state was corrupt, reset", "to", next.String())
		} else {
			c.log.Debug("focus request has no transition",
				"state", current.String(), "requested", requested.String())
		}
		return
	}

	c.log.Info("focus", "from", current.String(), "to", next.String(), "control", write.name)
	c.issue(write)
	c.publish(events.FocusChangedEvent{
		From:      current.String(),
		To:        next.String(),
		Timestamp: timestamp(),
	})
}

func (c *Controller) cyclePattern() {
	c.mu.Lock()
	next := nextPattern(c.pattern)
	c.pattern = next
	c.mu.Unlock()
	c.applyPattern(next)
}

func (c *Controller) setPattern(value int) {
	c.mu.Lock()
	c.pattern = value
	c.mu.Unlock()
	c.applyPattern(value)
}

func (c *Controller) applyPattern(value int) {
	c.log.Info("test pattern", "pattern", value)
	c.issue(controlWrite{name: "test_pattern", id: v4l2.CIDTestPattern, value: int32(value)})
	c.publish(events.PatternChangedEvent{Pattern: value, Timestamp: timestamp()})
}

// SetPattern forces a pattern value synchronously. Used for the startup
// override before the capture loop begins.
func (c *Controller) SetPattern(value int) error {
	if !validPattern(value) {
		return fmt.Errorf("test pattern %d out of range 0..%d", value, PatternMax)
	}
	c.setPattern(value)
	return nil
}

// The state is kept even when the driver rejects the write: the recorded
// state tracks operator intent, and a retry of the same key re-issues the
// identical control.
func (c *Controller) issue(w controlWrite) {
	if err := c.sub.SetControl(w.id, w.value); err != nil {
		c.log.Warn("control write rejected",
			"control", w.name, "value", w.value, "error", err)
		c.publish(events.ControlRejectedEvent{
			Control:   w.name,
			Value:     w.value,
			Error:     err.Error(),
			Timestamp: timestamp(),
		})
	}
}

func (c *Controller) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}

// Snapshot is the controls block of the status endpoint.
type Snapshot struct {
	Focus   string `json:"focus" example:"auto" doc:"Focus state"`
	Pattern int    `json:"pattern" example:"0" doc:"Active test pattern"`
	Live    bool   `json:"live" example:"true" doc:"True when showing live sensor output"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Focus:   c.focus.String(),
		Pattern: c.pattern,
		Live:    c.pattern == PatternLive,
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
