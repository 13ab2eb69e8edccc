//go:build linux

package v4l2

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "video") {
			continue
		}

		devicePath := "/dev/" + entry.Name()

		fd, err := open(devicePath, unix.O_RDWR|unix.O_NONBLOCK)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to open video device", "path", devicePath, "error", err)
			continue
		}

		raw := v4l2Capability{}
		if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
			slog.With("component", "linuxav").Debug("failed to query device capabilities", "path", devicePath, "error", err)
			close(fd)
			continue
		}
		close(fd)

		// Get the effective capabilities
		caps := raw.capabilities
		if caps&CapDeviceCaps != 0 {
			caps = raw.deviceCaps
		}

		// Only include video capture devices
		if caps&(CapVideoCapture|CapVideoCaptureMPlane) == 0 {
			continue
		}

		// Get device index from sysfs
		indexPath := filepath.Join("/sys/class/video4linux", entry.Name(), "index")
		indexValue := readSysfsInt(indexPath)

		// Find stable ID from /dev/v4l/by-id/
		stableID := findStableID(entry.Name(), indexValue)
		if stableID == "" {
			// Fallback: synthetic ID from bus_info + index
			busInfo := cstr(raw.busInfo[:])
			if strings.HasPrefix(busInfo, "usb-") {
				stableID = fmt.Sprintf("%s-video-index%d", busInfo, indexValue)
			} else {
				stableID = fmt.Sprintf("platform-%s-video-index%d", busInfo, indexValue)
			}
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: cstr(raw.card[:]),
			DeviceID:   stableID,
			Driver:     cstr(raw.driver[:]),
			Caps:       caps,
			MPlane:     caps&CapVideoCaptureMPlane != 0,
		})
	}

	return devices, nil
}

// FindSubdevices finds all V4L2 sub-device nodes on the system. Sub-devices
// carry sensor controls and do not answer capture capability queries, so
// identification comes from sysfs alone.
func FindSubdevices() ([]SubdeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []SubdeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var subdevices []SubdeviceInfo

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "v4l-subdev") {
			continue
		}

		name := readSysfsString(filepath.Join("/sys/class/video4linux", entry.Name(), "name"))
		subdevices = append(subdevices, SubdeviceInfo{
			DevicePath: "/dev/" + entry.Name(),
			Name:       name,
		})
	}

	return subdevices, nil
}

// GetDevicePathByID finds the device path for a given stable device ID.
func GetDevicePathByID(deviceID string) (string, error) {
	devices, err := FindDevices()
	if err != nil {
		return "", fmt.Errorf("failed to find devices: %w", err)
	}

	for _, device := range devices {
		if device.DeviceID == deviceID {
			return device.DevicePath, nil
		}
	}

	return "", fmt.Errorf("device with ID %s not found", deviceID)
}

// GetFormats returns all supported pixel formats for a device. Multi-planar
// formats are preferred; drivers that only implement the single-planar API
// are enumerated through that instead.
func GetFormats(devicePath string) ([]FormatInfo, error) {
	fd, err := open(devicePath, unix.O_RDWR|unix.O_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer close(fd)

	formats, err := enumFormats(fd, BufTypeVideoCaptureMPlane)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return enumFormats(fd, BufTypeVideoCapture)
	}
	return formats, nil
}

func enumFormats(fd int, bufType uint32) ([]FormatInfo, error) {
	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2Fmtdesc{
			index: i,
			typ:   bufType,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); ioctlErr != nil {
			if errors.Is(ioctlErr, unix.EINVAL) || errors.Is(ioctlErr, unix.ENOTTY) {
				break // End of enumeration
			}
			return nil, fmt.Errorf("failed to enumerate format %d: %w", i, ioctlErr)
		}

		formats = append(formats, FormatInfo{
			PixelFormat: fmtdesc.pixelformat,
			FormatName:  cstr(fmtdesc.description[:]),
			Emulated:    fmtdesc.flags&FmtFlagEmulated != 0,
		})
	}

	return formats, nil
}

// findStableID looks for a stable ID symlink in /dev/v4l/by-id/
func findStableID(deviceName string, indexValue int) string {
	byIDDir := "/dev/v4l/by-id"
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}

	expectedSuffix := fmt.Sprintf("-video-index%d", indexValue)

	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		linkPath := filepath.Join(byIDDir, entry.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			continue
		}

		// Get the video device name from the target
		targetBase := filepath.Base(target)
		if targetBase == deviceName && strings.HasSuffix(entry.Name(), expectedSuffix) {
			return entry.Name()
		}
	}

	return ""
}

// readSysfsInt reads an integer value from a sysfs file.
func readSysfsInt(path string) int {
	val, _ := strconv.Atoi(readSysfsString(path))
	return val
}

// readSysfsString reads a trimmed string value from a sysfs file.
func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
