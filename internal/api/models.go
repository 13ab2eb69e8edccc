package api

import (
	"github.com/smazurov/viewfinder/internal/controls"
	"github.com/smazurov/viewfinder/internal/devices"
	"github.com/smazurov/viewfinder/internal/version"
)

type HealthResponse struct {
	Body HealthData
}

type HealthData struct {
	Status string `json:"status" example:"ok" doc:"Service health"`
}

// StatusResponse is the full runtime snapshot served at /api/status.
type StatusResponse struct {
	Body StatusData
}

type StatusData struct {
	Version   version.Info       `json:"version" doc:"Build identity"`
	Capture   *CaptureStatus     `json:"capture,omitempty" doc:"Capture session state"`
	Controls  *controls.Snapshot `json:"controls,omitempty" doc:"Focus and test pattern state, absent without a sub-device"`
	Recording *RecordingStatus   `json:"recording,omitempty" doc:"Active recording, absent when not recording"`
}

type CaptureStatus struct {
	DevicePath string `json:"device_path" example:"/dev/video3" doc:"Capture node"`
	Width      uint32 `json:"width" example:"1920" doc:"Negotiated frame width"`
	Height     uint32 `json:"height" example:"1080" doc:"Negotiated frame height"`
	Buffers    uint32 `json:"buffers" example:"4" doc:"Kernel buffers granted by the driver"`
	Frames     uint64 `json:"frames" example:"1800" doc:"Frames rendered so far"`
	Streaming  bool   `json:"streaming" example:"true" doc:"Whether the stream is on"`
	DMAExport  bool   `json:"dma_export" example:"false" doc:"Whether planes are exported as dmabuf fds"`
}

type RecordingStatus struct {
	Path   string `json:"path" example:"/tmp/clip.avi" doc:"Recording file"`
	Frames uint64 `json:"frames" example:"900" doc:"Frames written so far"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

type DeviceListData struct {
	Devices []devices.Summary `json:"devices" doc:"Capture devices"`
	Count   int               `json:"count" example:"1" doc:"Number of devices"`
}

type SubdeviceListResponse struct {
	Body SubdeviceListData
}

type SubdeviceListData struct {
	Subdevices []devices.Subdevice `json:"subdevices" doc:"Sensor control nodes"`
	Count      int                 `json:"count" example:"1" doc:"Number of sub-devices"`
}

type FocusInput struct {
	Body FocusBody
}

type FocusBody struct {
	Mode string `json:"mode" enum:"auto,single,pause" example:"single" doc:"Requested focus mode"`
}

type PatternInput struct {
	Body PatternBody
}

// PatternBody selects a test pattern either by action or by explicit
// value. Exactly one of the two must be present.
type PatternBody struct {
	Action string `json:"action,omitempty" enum:"cycle,live" example:"cycle" doc:"Cycle to the next pattern or return to live output"`
	Value  *int   `json:"value,omitempty" minimum:"0" maximum:"3" example:"2" doc:"Explicit pattern index, 0 is live"`
}

type ControlResponse struct {
	Body ControlData
}

type ControlData struct {
	Status  string `json:"status" example:"queued" doc:"Request disposition"`
	Request string `json:"request" example:"focus single" doc:"What was queued"`
}
