//go:build linux

package v4l2

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Subdevice is an open V4L2 sub-device node, typically the sensor behind a
// capture device. Sub-devices expose controls, not video capture, so no
// capability check is performed at open time.
type Subdevice struct {
	fd   int
	path string
}

// OpenSubdevice opens a sensor sub-device node for control access.
func OpenSubdevice(path string) (*Subdevice, error) {
	fd, err := open(path, unix.O_RDWR)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Subdevice{fd: fd, path: path}, nil
}

// Path returns the filesystem path the sub-device was opened from.
func (s *Subdevice) Path() string { return s.path }

// SetControl writes a single control value to the sensor. Drivers reject
// values out of range or controls the sensor does not implement; the error
// carries the underlying errno.
func (s *Subdevice) SetControl(id uint32, value int32) error {
	ctrl := v4l2Control{id: id, value: value}
	if err := ioctl(s.fd, vidiocSCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return fmt.Errorf("set control %#08x to %d on %s: %w", id, value, s.path, err)
	}
	return nil
}

// Close releases the sub-device descriptor. Safe to call twice.
func (s *Subdevice) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := close(s.fd)
	s.fd = -1
	return err
}
