//go:build linux

// Package devices lists V4L2 capture hardware, resolves stable device
// identifiers to node paths, and watches for nodes arriving and leaving.
package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/viewfinder/pkg/linuxav/v4l2"
)

// Enumeration seams, swapped in tests.
var (
	findDevices    = v4l2.FindDevices
	findSubdevices = v4l2.FindSubdevices
	getFormats     = v4l2.GetFormats
)

// Summary describes one capture device for listings and API responses.
type Summary struct {
	DevicePath string   `json:"device_path" example:"/dev/video3" doc:"Path to the video device node"`
	DeviceName string   `json:"device_name" example:"imx477" doc:"Device name from the driver"`
	DeviceID   string   `json:"device_id" doc:"Stable device identifier"`
	Driver     string   `json:"driver" example:"unicam" doc:"Kernel driver name"`
	MPlane     bool     `json:"mplane" doc:"Device implements the multi-planar capture API"`
	Formats    []string `json:"formats,omitempty" example:"NM12,YUYV" doc:"Supported pixel formats as fourcc strings"`
}

// Subdevice describes one sensor control node.
type Subdevice struct {
	DevicePath string `json:"device_path" example:"/dev/v4l-subdev10" doc:"Path to the sub-device node"`
	Name       string `json:"name" example:"imx477 10-001a" doc:"Sub-device name from sysfs"`
}

// List returns every capture device on the system with its supported
// formats. Format enumeration is best effort; a device that refuses the
// query is still listed.
func List() ([]Summary, error) {
	devices, err := findDevices()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(devices))
	for _, d := range devices {
		summaries = append(summaries, Summary{
			DevicePath: d.DevicePath,
			DeviceName: d.DeviceName,
			DeviceID:   d.DeviceID,
			Driver:     d.Driver,
			MPlane:     d.MPlane,
			Formats:    formatNames(d.DevicePath),
		})
	}
	return summaries, nil
}

// ListSubdevices returns every sensor control node on the system.
func ListSubdevices() ([]Subdevice, error) {
	subdevices, err := findSubdevices()
	if err != nil {
		return nil, err
	}

	out := make([]Subdevice, 0, len(subdevices))
	for _, s := range subdevices {
		out = append(out, Subdevice{DevicePath: s.DevicePath, Name: s.Name})
	}
	return out, nil
}

func formatNames(devicePath string) []string {
	formats, err := getFormats(devicePath)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, v4l2.FormatFourCC(f.PixelFormat))
	}
	return names
}

// Resolve turns a device spec into a usable node path. A spec starting
// with /dev/ must name an existing node; anything else is treated as a
// stable identifier and looked up under /dev/v4l/by-id/ and
// /dev/v4l/by-path/ before falling back to a capability scan.
func Resolve(spec string) (string, error) {
	return resolve(spec, "/dev/v4l/by-id", "/dev/v4l/by-path")
}

func resolve(spec, byID, byPath string) (string, error) {
	if strings.HasPrefix(spec, "/dev/") {
		if _, err := os.Stat(spec); err != nil {
			return "", fmt.Errorf("device %s: %w", spec, err)
		}
		return spec, nil
	}

	for _, dir := range []string{byID, byPath} {
		candidate := filepath.Join(dir, spec)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return v4l2.GetDevicePathByID(spec)
}
