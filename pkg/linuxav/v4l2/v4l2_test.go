//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

// TestErrnoThroughWrap verifies that errors.Is still matches an errno after
// ioctl errors have been wrapped with fmt.Errorf. Callers rely on this to
// tell an interrupted dequeue from a real I/O failure.
func TestErrnoThroughWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{
			name:     "bare EINTR matches EINTR",
			err:      unix.EINTR,
			target:   unix.EINTR,
			expected: true,
		},
		{
			name:     "wrapped EINTR matches EINTR",
			err:      fmt.Errorf("dequeue on /dev/video3: %w", unix.EINTR),
			target:   unix.EINTR,
			expected: true,
		},
		{
			name:     "wrapped EINVAL matches EINVAL",
			err:      fmt.Errorf("failed to enumerate format 4: %w", unix.EINVAL),
			target:   unix.EINVAL,
			expected: true,
		},
		{
			name:     "wrapped EBUSY does not match EINTR",
			err:      fmt.Errorf("stream on for /dev/video3: %w", unix.EBUSY),
			target:   unix.EINTR,
			expected: false,
		},
		{
			name:     "ENOTTY matches ENOTTY",
			err:      unix.ENOTTY,
			target:   unix.ENOTTY,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errors.Is(tt.err, tt.target)
			if result != tt.expected {
				t.Errorf("errors.Is(%v, %v) = %v, want %v",
					tt.err, tt.target, result, tt.expected)
			}
		})
	}
}

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{
			name:     "YUYV format",
			format:   PixFmtYUYV,
			expected: "YUYV",
		},
		{
			name:     "MJPEG format",
			format:   PixFmtMJPEG,
			expected: "MJPG",
		},
		{
			name:     "H264 format",
			format:   PixFmtH264,
			expected: "H264",
		},
		{
			name:     "NV12 single-planar format",
			format:   PixFmtNV12,
			expected: "NV12",
		},
		{
			name:     "NV12M multi-planar format",
			format:   PixFmtNV12M,
			expected: "NM12",
		},
		{
			name:     "null bytes",
			format:   0x00000000,
			expected: "\x00\x00\x00\x00",
		},
		{
			name:     "all 0xFF bytes",
			format:   0xFFFFFFFF,
			expected: "\xFF\xFF\xFF\xFF",
		},
		{
			name:     "mixed bytes",
			format:   0x01020304,
			expected: "\x04\x03\x02\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatFourCC(tt.format)
			if result != tt.expected {
				t.Errorf("FormatFourCC(0x%08X) = %q, want %q", tt.format, result, tt.expected)
			}
		})
	}
}

func TestCapabilityEffective(t *testing.T) {
	tests := []struct {
		name     string
		cap      Capability
		expected uint32
	}{
		{
			name: "device caps used when flag set",
			cap: Capability{
				Capabilities: CapDeviceCaps | CapVideoCapture | CapVideoCaptureMPlane | CapStreaming,
				DeviceCaps:   CapVideoCaptureMPlane | CapStreaming,
			},
			expected: CapVideoCaptureMPlane | CapStreaming,
		},
		{
			name: "driver caps used when flag absent",
			cap: Capability{
				Capabilities: CapVideoCapture | CapStreaming,
				DeviceCaps:   0,
			},
			expected: CapVideoCapture | CapStreaming,
		},
		{
			name: "empty device caps still honored when flag set",
			cap: Capability{
				Capabilities: CapDeviceCaps | CapVideoCapture,
				DeviceCaps:   0,
			},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.cap.Effective()
			if result != tt.expected {
				t.Errorf("Effective() = 0x%08X, want 0x%08X", result, tt.expected)
			}
		})
	}
}

// TestIoctlEncoding recomputes each request number from the direction, the
// command number and the size of the actual Go struct, and compares it with
// the precomputed constant. A mismatch means the struct layout drifted from
// the kernel ABI on this architecture.
func TestIoctlEncoding(t *testing.T) {
	const (
		iocWrite = 1
		iocRead  = 2
	)
	ioc := func(dir, nr, size uintptr) uint {
		return uint(dir<<30 | size<<16 | 'V'<<8 | nr)
	}

	tests := []struct {
		name     string
		request  uint
		expected uint
	}{
		{"VIDIOC_QUERYCAP", vidiocQuerycap, ioc(iocRead, 0, unsafe.Sizeof(v4l2Capability{}))},
		{"VIDIOC_ENUM_FMT", vidiocEnumFmt, ioc(iocRead|iocWrite, 2, unsafe.Sizeof(v4l2Fmtdesc{}))},
		{"VIDIOC_S_FMT", vidiocSFmt, ioc(iocRead|iocWrite, 5, unsafe.Sizeof(v4l2Format{}))},
		{"VIDIOC_REQBUFS", vidiocReqbufs, ioc(iocRead|iocWrite, 8, unsafe.Sizeof(v4l2RequestBuffers{}))},
		{"VIDIOC_QUERYBUF", vidiocQuerybuf, ioc(iocRead|iocWrite, 9, unsafe.Sizeof(v4l2Buffer{}))},
		{"VIDIOC_QBUF", vidiocQbuf, ioc(iocRead|iocWrite, 15, unsafe.Sizeof(v4l2Buffer{}))},
		{"VIDIOC_EXPBUF", vidiocExpbuf, ioc(iocRead|iocWrite, 16, unsafe.Sizeof(v4l2ExportBuffer{}))},
		{"VIDIOC_DQBUF", vidiocDqbuf, ioc(iocRead|iocWrite, 17, unsafe.Sizeof(v4l2Buffer{}))},
		{"VIDIOC_STREAMON", vidiocStreamon, ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))},
		{"VIDIOC_STREAMOFF", vidiocStreamoff, ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))},
		{"VIDIOC_S_CTRL", vidiocSCtrl, ioc(iocRead|iocWrite, 28, unsafe.Sizeof(v4l2Control{}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.request != tt.expected {
				t.Errorf("request = 0x%08X, want 0x%08X", tt.request, tt.expected)
			}
		})
	}
}

func TestCstr(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "terminated string",
			input:    []byte{'u', 'v', 'c', 0, 0, 0},
			expected: "uvc",
		},
		{
			name:     "no terminator",
			input:    []byte{'a', 'b', 'c'},
			expected: "abc",
		},
		{
			name:     "terminator first",
			input:    []byte{0, 'x', 'y'},
			expected: "",
		},
		{
			name:     "empty slice",
			input:    []byte{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cstr(tt.input)
			if result != tt.expected {
				t.Errorf("cstr(%v) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
