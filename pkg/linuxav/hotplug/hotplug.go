//go:build linux

// Package hotplug watches kernel uevents for device nodes arriving and
// leaving. It listens on the NETLINK_KOBJECT_UEVENT broadcast group
// directly, so it needs neither udev nor cgo.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Uevent actions this package distinguishes. The kernel emits more
// (bind, unbind, move); those pass through with their literal action
// string.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// SubsystemVideo4Linux matches uevents for /dev/video* and
// /dev/v4l-subdev* nodes.
const SubsystemVideo4Linux = "video4linux"

// Event is one decoded kernel uevent.
type Event struct {
	Action    string            // add, remove, change, ...
	Subsystem string            // source subsystem, e.g. video4linux
	Object    string            // kernel object path from the event header
	Name      string            // device node name, e.g. video3
	Attrs     map[string]string // full uevent property set
}

// Monitor receives kernel uevents over a netlink socket. Subsystem
// filters are fixed at construction; a monitor built with no filters
// passes every event through.
type Monitor struct {
	fd    int
	match map[string]struct{}
}

// NewMonitor opens the netlink socket and joins the kernel broadcast
// group.
func NewMonitor(subsystems ...string) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("open netlink socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: 1}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind netlink socket: %w", err)
	}

	// Bounded reads so Run notices context cancellation within a second.
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set receive timeout: %w", err)
	}

	m := &Monitor{fd: fd, match: make(map[string]struct{}, len(subsystems))}
	for _, s := range subsystems {
		m.match[s] = struct{}{}
	}
	return m, nil
}

// Close releases the netlink socket.
func (m *Monitor) Close() error {
	return unix.Close(m.fd)
}

// Run reads uevents and delivers matching ones to out until ctx is
// cancelled. The out channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)

	buf := make([]byte, 8192)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, _, err := unix.Recvfrom(m.fd, buf, 0)
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			return fmt.Errorf("read netlink socket: %w", err)
		case n == 0:
			continue
		}

		ev, ok := parseUEvent(buf[:n])
		if !ok || !m.wants(ev.Subsystem) {
			continue
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Monitor) wants(subsystem string) bool {
	if len(m.match) == 0 {
		return true
	}
	_, ok := m.match[subsystem]
	return ok
}

// parseUEvent decodes a kernel uevent datagram. The wire format is an
// "ACTION@KOBJ" header followed by NUL-separated KEY=VALUE properties.
// Datagrams without that header, such as udevd rebroadcasts with their
// libudev framing, are dropped.
func parseUEvent(data []byte) (Event, bool) {
	segments := bytes.Split(data, []byte{0})
	if len(segments) == 0 {
		return Event{}, false
	}

	action, object, found := strings.Cut(string(segments[0]), "@")
	if !found || action == "" {
		return Event{}, false
	}

	ev := Event{Action: action, Object: object, Attrs: make(map[string]string)}
	for _, seg := range segments[1:] {
		if len(seg) == 0 {
			continue
		}
		key, value, ok := strings.Cut(string(seg), "=")
		if !ok || key == "" {
			continue
		}
		ev.Attrs[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.Name = value
		}
	}
	return ev, true
}
