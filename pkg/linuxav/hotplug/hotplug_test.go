//go:build linux

package hotplug

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected *Event
	}{
		{
			name:     "empty input",
			input:    []byte{},
			expected: nil,
		},
		{
			name:     "no separator",
			input:    []byte("invalid"),
			expected: nil,
		},
		{
			name:     "missing action",
			input:    []byte("@/devices/foo"),
			expected: nil,
		},
		{
			name:     "only null bytes",
			input:    []byte{0, 0, 0, 0},
			expected: nil,
		},
		{
			name:  "capture node added",
			input: []byte("add@/devices/platform/video0\x00SUBSYSTEM=video4linux\x00DEVNAME=video0\x00"),
			expected: &Event{
				Action:    "add",
				Object:    "/devices/platform/video0",
				Subsystem: "video4linux",
				Name:      "video0",
				Attrs: map[string]string{
					"SUBSYSTEM": "video4linux",
					"DEVNAME":   "video0",
				},
			},
		},
		{
			name:  "usb device removed",
			input: []byte("remove@/devices/usb/1-1\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00PRODUCT=1234/5678/0100\x00"),
			expected: &Event{
				Action:    "remove",
				Object:    "/devices/usb/1-1",
				Subsystem: "usb",
				Attrs: map[string]string{
					"SUBSYSTEM": "usb",
					"DEVTYPE":   "usb_device",
					"PRODUCT":   "1234/5678/0100",
				},
			},
		},
		{
			name:  "empty property value kept",
			input: []byte("add@/devices/test\x00KEY1=value1\x00KEY2=\x00"),
			expected: &Event{
				Action: "add",
				Object: "/devices/test",
				Attrs: map[string]string{
					"KEY1": "value1",
					"KEY2": "",
				},
			},
		},
		{
			name:  "equals inside value",
			input: []byte("add@/devices/test\x00KEY=val=ue=with=equals\x00"),
			expected: &Event{
				Action: "add",
				Object: "/devices/test",
				Attrs:  map[string]string{"KEY": "val=ue=with=equals"},
			},
		},
		{
			name:  "consecutive nulls skipped",
			input: []byte("change@/devices/test\x00\x00\x00KEY=val\x00"),
			expected: &Event{
				Action: "change",
				Object: "/devices/test",
				Attrs:  map[string]string{"KEY": "val"},
			},
		},
		{
			name:  "long object path",
			input: []byte("add@/devices/" + strings.Repeat("a", 500) + "\x00"),
			expected: &Event{
				Action: "add",
				Object: "/devices/" + strings.Repeat("a", 500),
				Attrs:  map[string]string{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := parseUEvent(tt.input)

			if tt.expected == nil {
				if ok {
					t.Errorf("parseUEvent() = %+v, want rejection", result)
				}
				return
			}
			if !ok {
				t.Fatalf("parseUEvent() rejected, want %+v", tt.expected)
			}

			if result.Action != tt.expected.Action {
				t.Errorf("Action = %q, want %q", result.Action, tt.expected.Action)
			}
			if result.Object != tt.expected.Object {
				t.Errorf("Object = %q, want %q", result.Object, tt.expected.Object)
			}
			if result.Subsystem != tt.expected.Subsystem {
				t.Errorf("Subsystem = %q, want %q", result.Subsystem, tt.expected.Subsystem)
			}
			if result.Name != tt.expected.Name {
				t.Errorf("Name = %q, want %q", result.Name, tt.expected.Name)
			}
			if len(result.Attrs) != len(tt.expected.Attrs) {
				t.Errorf("len(Attrs) = %d, want %d", len(result.Attrs), len(tt.expected.Attrs))
			}
			for k, v := range tt.expected.Attrs {
				if result.Attrs[k] != v {
					t.Errorf("Attrs[%q] = %q, want %q", k, result.Attrs[k], v)
				}
			}
		})
	}
}

func TestMonitorWants(t *testing.T) {
	tests := []struct {
		name      string
		filters   []string
		subsystem string
		want      bool
	}{
		{"no filters pass everything", nil, "block", true},
		{"matching filter", []string{SubsystemVideo4Linux}, "video4linux", true},
		{"non-matching filter", []string{SubsystemVideo4Linux}, "sound", false},
		{"one of several filters", []string{"usb", SubsystemVideo4Linux}, "usb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Monitor{match: make(map[string]struct{})}
			for _, f := range tt.filters {
				m.match[f] = struct{}{}
			}
			if got := m.wants(tt.subsystem); got != tt.want {
				t.Errorf("wants(%q) = %v, want %v", tt.subsystem, got, tt.want)
			}
		})
	}
}

func TestNewMonitor(t *testing.T) {
	m, err := NewMonitor(SubsystemVideo4Linux)
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer func() { _ = m.Close() }()

	if m.fd <= 0 {
		t.Errorf("fd = %d, want a valid descriptor", m.fd)
	}
	if _, ok := m.match[SubsystemVideo4Linux]; !ok {
		t.Error("video4linux filter not recorded")
	}
}

func TestMonitorClose(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}

	if closeErr := m.Close(); closeErr != nil {
		t.Errorf("Close() error: %v", closeErr)
	}
	if closeErr := m.Close(); closeErr == nil {
		t.Error("second Close() succeeded, want bad descriptor error")
	}
}

func TestMonitorRunCancellation(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer func() { _ = m.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event, 10)
	if runErr := m.Run(ctx, events); !errors.Is(runErr, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", runErr)
	}
	if _, open := <-events; open {
		t.Error("events channel still open after Run returned")
	}
}
