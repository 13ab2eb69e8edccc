package events

// Event type constants for kelindar/event.
const (
	TypeCaptureStarted uint32 = iota + 1
	TypeCaptureStopped
	TypeFocusChanged
	TypePatternChanged
	TypeControlRejected
	TypeDeviceDiscovery
	TypeRecordingStarted
	TypeRecordingStopped
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CaptureStartedEvent is published when streaming starts on a device.
type CaptureStartedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video3" doc:"Path to the video device"`
	Width      uint32 `json:"width" example:"1920" doc:"Granted frame width in pixels"`
	Height     uint32 `json:"height" example:"1080" doc:"Granted frame height in pixels"`
	Buffers    uint32 `json:"buffers" example:"4" doc:"Number of kernel buffers granted"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStartedEvent.
func (e CaptureStartedEvent) Type() uint32 { return TypeCaptureStarted }

// CaptureStoppedEvent is published when the capture loop exits.
type CaptureStoppedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video3" doc:"Path to the video device"`
	Frames     uint64 `json:"frames" example:"1800" doc:"Total frames delivered to the renderer"`
	Reason     string `json:"reason" example:"signal" doc:"Why the loop exited: signal, renderer, limit, error"`
	Error      string `json:"error,omitempty" doc:"Error description when reason is error"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CaptureStoppedEvent.
func (e CaptureStoppedEvent) Type() uint32 { return TypeCaptureStopped }

// FocusChangedEvent is published when the focus state machine transitions.
type FocusChangedEvent struct {
	From      string `json:"from" example:"auto" doc:"Previous focus state"`
	To        string `json:"to" example:"paused" doc:"New focus state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FocusChangedEvent.
func (e FocusChangedEvent) Type() uint32 { return TypeFocusChanged }

// PatternChangedEvent is published when the sensor test pattern changes.
type PatternChangedEvent struct {
	Pattern   int    `json:"pattern" example:"1" doc:"Active test pattern, 0 is live sensor output"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PatternChangedEvent.
func (e PatternChangedEvent) Type() uint32 { return TypePatternChanged }

// ControlRejectedEvent is published when the sensor driver rejects a
// control write. The advanced state is kept, so these signal drift between
// requested and applied sensor state.
type ControlRejectedEvent struct {
	Control   string `json:"control" example:"focus_auto" doc:"Control that was rejected"`
	Value     int32  `json:"value" example:"1" doc:"Requested control value"`
	Error     string `json:"error" doc:"Driver error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ControlRejectedEvent.
func (e ControlRejectedEvent) Type() uint32 { return TypeControlRejected }

// DeviceDiscoveryEvent represents device enumeration results.
type DeviceDiscoveryEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video3" doc:"Path to the video device"`
	DeviceName string `json:"device_name" example:"imx477" doc:"Device name from the driver"`
	DeviceID   string `json:"device_id" doc:"Stable device identifier"`
	Action     string `json:"action" example:"added" doc:"Action type: added, removed, changed"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// RecordingStartedEvent is published when frame recording begins.
type RecordingStartedEvent struct {
	Path      string `json:"path" example:"/var/lib/viewfinder/rec-20250127.avi" doc:"Output file path"`
	Width     uint32 `json:"width" example:"1920" doc:"Recorded frame width"`
	Height    uint32 `json:"height" example:"1080" doc:"Recorded frame height"`
	FPS       int    `json:"fps" example:"30" doc:"Recording frame rate"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStartedEvent.
func (e RecordingStartedEvent) Type() uint32 { return TypeRecordingStarted }

// RecordingStoppedEvent is published when frame recording ends.
type RecordingStoppedEvent struct {
	Path      string `json:"path" example:"/var/lib/viewfinder/rec-20250127.avi" doc:"Output file path"`
	Frames    uint64 `json:"frames" example:"900" doc:"Number of frames written"`
	Size      string `json:"size" example:"24 MB" doc:"Output file size, human readable"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RecordingStoppedEvent.
func (e RecordingStoppedEvent) Type() uint32 { return TypeRecordingStopped }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
