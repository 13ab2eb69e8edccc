//go:build linux

package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/internal/logging"
	"github.com/smazurov/viewfinder/pkg/linuxav/hotplug"
	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

// settleDelay is how long to wait after a node appears before querying
// it. Node registration precedes driver readiness, and a capability
// query against a half-initialized driver returns junk.
const settleDelay = time.Second

type ueventSource interface {
	Run(ctx context.Context, out chan<- hotplug.Event) error
	Close() error
}

// Monitor publishes DeviceDiscoveryEvents as capture devices come and
// go. Discovery is uevent driven: every relevant kernel event triggers
// a re-enumeration, and the delta against the previously seen set is
// published. The initial enumeration publishes every present device as
// added.
type Monitor struct {
	log    *slog.Logger
	bus    *events.Bus
	settle time.Duration

	open      func() (ueventSource, error)
	enumerate func() ([]v4l2.DeviceInfo, error)

	mu    sync.Mutex
	known map[string]v4l2.DeviceInfo

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor that publishes on bus. Call Start to
// begin watching.
func NewMonitor(bus *events.Bus) *Monitor {
	return &Monitor{
		log:    logging.GetLogger("devices"),
		bus:    bus,
		settle: settleDelay,
		open: func() (ueventSource, error) {
			return hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
		},
		enumerate: findDevices,
		known:     make(map[string]v4l2.DeviceInfo),
	}
}

// Start seeds the known device set, publishes the initial listing, and
// begins watching kernel uevents. It returns an error when the netlink
// socket cannot be opened.
func (m *Monitor) Start(ctx context.Context) error {
	if m.cancel != nil {
		return errors.New("monitor already started")
	}

	src, err := m.open()
	if err != nil {
		return fmt.Errorf("open uevent monitor: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.resync()

	ch := make(chan hotplug.Event, 16)
	go func() {
		if runErr := src.Run(ctx, ch); runErr != nil && !errors.Is(runErr, context.Canceled) {
			m.log.Warn("uevent monitor stopped", "error", runErr)
		}
	}()
	go m.consume(ctx, src, ch)

	return nil
}

// Stop cancels the watch and waits for the event goroutines to drain.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

func (m *Monitor) consume(ctx context.Context, src ueventSource, ch <-chan hotplug.Event) {
	defer close(m.done)
	defer src.Close()

	for ev := range ch {
		// Sub-device nodes share the subsystem but are not capture
		// devices; enumeration would not see them anyway.
		if !strings.HasPrefix(ev.Name, "video") {
			continue
		}
		m.log.Debug("uevent", "action", ev.Action, "node", ev.Name)
		if ev.Action == hotplug.ActionAdd {
			sleepCtx(ctx, m.settle)
		}
		m.resync()
	}
}

// resync enumerates present devices and publishes the delta against the
// last seen set.
func (m *Monitor) resync() {
	devices, err := m.enumerate()
	if err != nil {
		m.log.Warn("device enumeration failed", "error", err)
		return
	}

	present := make(map[string]v4l2.DeviceInfo, len(devices))
	for _, d := range devices {
		present[d.DevicePath] = d
	}

	m.mu.Lock()
	var added, removed []v4l2.DeviceInfo
	for path, d := range present {
		if _, ok := m.known[path]; !ok {
			added = append(added, d)
		}
	}
	for path, d := range m.known {
		if _, ok := present[path]; !ok {
			removed = append(removed, d)
		}
	}
	m.known = present
	m.mu.Unlock()

	byPath := func(a, b v4l2.DeviceInfo) int {
		return strings.Compare(a.DevicePath, b.DevicePath)
	}
	slices.SortFunc(added, byPath)
	slices.SortFunc(removed, byPath)

	for _, d := range added {
		m.publish(d, "added")
	}
	for _, d := range removed {
		m.publish(d, "removed")
	}
}

func (m *Monitor) publish(d v4l2.DeviceInfo, action string) {
	m.log.Info("capture device "+action, "path", d.DevicePath, "name", d.DeviceName)
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.DeviceDiscoveryEvent{
		DevicePath: d.DevicePath,
		DeviceName: d.DeviceName,
		DeviceID:   d.DeviceID,
		Action:     action,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
