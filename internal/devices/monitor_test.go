//go:build linux

package devices

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/pkg/linuxav/hotplug"
	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

// fakeSource feeds scripted uevents and then blocks until cancelled.
type fakeSource struct {
	events []hotplug.Event
	closed atomic.Bool
}

func (f *fakeSource) Run(ctx context.Context, out chan<- hotplug.Event) error {
	defer close(out)
	for _, ev := range f.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

// scriptedEnum returns one step per enumeration call, repeating the
// last step once the script is exhausted.
type scriptedEnum struct {
	mu    sync.Mutex
	steps [][]v4l2.DeviceInfo
	calls int
}

func (s *scriptedEnum) next() ([]v4l2.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i], nil
}

func (s *scriptedEnum) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func dev(path, name string) v4l2.DeviceInfo {
	return v4l2.DeviceInfo{DevicePath: path, DeviceName: name, DeviceID: "id-" + name}
}

func videoEvent(action, name string) hotplug.Event {
	return hotplug.Event{Action: action, Subsystem: hotplug.SubsystemVideo4Linux, Name: name}
}

func waitDiscovery(t *testing.T, ch <-chan events.DeviceDiscoveryEvent) events.DeviceDiscoveryEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for discovery event")
		return events.DeviceDiscoveryEvent{}
	}
}

func newTestMonitor(bus *events.Bus, src ueventSource, enum *scriptedEnum) *Monitor {
	m := NewMonitor(bus)
	m.settle = 0
	m.open = func() (ueventSource, error) { return src, nil }
	m.enumerate = enum.next
	return m
}

func TestMonitorPublishesInitialDevices(t *testing.T) {
	bus := events.New()
	ch := make(chan events.DeviceDiscoveryEvent, 8)
	defer bus.Subscribe(func(ev events.DeviceDiscoveryEvent) { ch <- ev })()

	src := &fakeSource{}
	enum := &scriptedEnum{steps: [][]v4l2.DeviceInfo{
		{dev("/dev/video3", "imx477"), dev("/dev/video1", "webcam")},
	}}
	m := newTestMonitor(bus, src, enum)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	first := waitDiscovery(t, ch)
	if first.Action != "added" || first.DevicePath != "/dev/video1" {
		t.Errorf("event = %s %s, want added /dev/video1", first.Action, first.DevicePath)
	}
	second := waitDiscovery(t, ch)
	if second.Action != "added" || second.DevicePath != "/dev/video3" {
		t.Errorf("event = %s %s, want added /dev/video3", second.Action, second.DevicePath)
	}
	if second.DeviceName != "imx477" || second.DeviceID != "id-imx477" {
		t.Errorf("event identity = %s %s, want imx477 id-imx477", second.DeviceName, second.DeviceID)
	}
}

func TestMonitorPublishesDelta(t *testing.T) {
	bus := events.New()
	ch := make(chan events.DeviceDiscoveryEvent, 8)
	defer bus.Subscribe(func(ev events.DeviceDiscoveryEvent) { ch <- ev })()

	src := &fakeSource{events: []hotplug.Event{
		videoEvent(hotplug.ActionAdd, "video5"),
		videoEvent(hotplug.ActionRemove, "video3"),
	}}
	enum := &scriptedEnum{steps: [][]v4l2.DeviceInfo{
		{dev("/dev/video3", "imx477")},
		{dev("/dev/video3", "imx477"), dev("/dev/video5", "webcam")},
		{dev("/dev/video5", "webcam")},
	}}
	m := newTestMonitor(bus, src, enum)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	want := []struct{ action, path string }{
		{"added", "/dev/video3"},
		{"added", "/dev/video5"},
		{"removed", "/dev/video3"},
	}
	for i, w := range want {
		ev := waitDiscovery(t, ch)
		if ev.Action != w.action || ev.DevicePath != w.path {
			t.Errorf("event %d = %s %s, want %s %s", i, ev.Action, ev.DevicePath, w.action, w.path)
		}
	}
}

func TestMonitorIgnoresSubdeviceNodes(t *testing.T) {
	bus := events.New()
	ch := make(chan events.DeviceDiscoveryEvent, 8)
	defer bus.Subscribe(func(ev events.DeviceDiscoveryEvent) { ch <- ev })()

	src := &fakeSource{events: []hotplug.Event{
		videoEvent(hotplug.ActionAdd, "v4l-subdev10"),
		videoEvent(hotplug.ActionAdd, "video7"),
	}}
	enum := &scriptedEnum{steps: [][]v4l2.DeviceInfo{
		{},
		{dev("/dev/video7", "webcam")},
	}}
	m := newTestMonitor(bus, src, enum)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	ev := waitDiscovery(t, ch)
	if ev.Action != "added" || ev.DevicePath != "/dev/video7" {
		t.Errorf("event = %s %s, want added /dev/video7", ev.Action, ev.DevicePath)
	}

	m.Stop()

	// Initial scan plus the video7 event; the sub-device uevent must
	// not trigger a rescan.
	if got := enum.callCount(); got != 2 {
		t.Errorf("enumeration calls = %d, want 2", got)
	}
	if !src.closed.Load() {
		t.Error("uevent source not closed after Stop")
	}
}

func TestMonitorStartFailsWhenSocketUnavailable(t *testing.T) {
	m := NewMonitor(events.New())
	m.open = func() (ueventSource, error) {
		return nil, errors.New("netlink unavailable")
	}

	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() succeeded, want socket error")
	}
}

func TestMonitorDoubleStartRejected(t *testing.T) {
	src := &fakeSource{}
	enum := &scriptedEnum{steps: [][]v4l2.DeviceInfo{{}}}
	m := newTestMonitor(events.New(), src, enum)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded, want error")
	}
}

func TestMonitorStopWithoutStart(t *testing.T) {
	m := NewMonitor(events.New())
	m.Stop()
}
