//go:build linux

package v4l2

// Buffer type, memory mode, and limit constants from videodev2.h.
const (
	BufTypeVideoCapture       = 1 // V4L2_BUF_TYPE_VIDEO_CAPTURE
	BufTypeVideoCaptureMPlane = 9 // V4L2_BUF_TYPE_VIDEO_CAPTURE_MPLANE
	MemoryMMap                = 1 // V4L2_MEMORY_MMAP
	FieldNone                 = 1 // V4L2_FIELD_NONE

	// MaxFrameBuffers is VIDEO_MAX_FRAME, the kernel limit on buffers per queue.
	MaxFrameBuffers = 32
	// MaxPlanes is VIDEO_MAX_PLANES, the kernel limit on planes per buffer.
	MaxPlanes = 8
	// NV12MPlanes is the plane count of the NV12M layout: full-resolution luma
	// followed by a half-resolution interleaved CbCr plane.
	NV12MPlanes = 2
)

// Capability flags from v4l2_capability.
const (
	CapVideoCapture       = 0x00000001
	CapVideoCaptureMPlane = 0x00001000
	CapStreaming          = 0x04000000
	CapDeviceCaps         = 0x80000000
)

// Format flags.
const (
	FmtFlagEmulated = 0x0002
)

// Common pixel formats (fourcc).
const (
	PixFmtYUYV  = 0x56595559 // 'YUYV'
	PixFmtMJPEG = 0x47504a4d // 'MJPG'
	PixFmtH264  = 0x34363248 // 'H264'
	PixFmtNV12  = 0x3231564e // 'NV12' single plane
	PixFmtNV12M = 0x32314d4e // 'NM12' two non-contiguous planes
)

// Camera and image-processing control IDs from v4l2-controls.h.
const (
	CIDFocusAuto      = 0x009a090c // V4L2_CID_FOCUS_AUTO, continuous auto focus on/off
	CID3ALock         = 0x009a091b // V4L2_CID_3A_LOCK
	CIDAutoFocusStart = 0x009a091c // V4L2_CID_AUTO_FOCUS_START, one-shot focus trigger
	CIDTestPattern    = 0x009f0903 // V4L2_CID_TEST_PATTERN
)

// Lock bits for CID3ALock.
const (
	LockExposure     = 0x1
	LockWhiteBalance = 0x2
	LockFocus        = 0x4
)

// Capability describes a device node as reported by VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capability bits that apply to the opened node:
// DeviceCaps when the driver advertises V4L2_CAP_DEVICE_CAPS, otherwise the
// whole-device Capabilities.
func (c Capability) Effective() uint32 {
	if c.Capabilities&CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// Format is a negotiated multi-planar frame layout. The driver may adjust
// the requested geometry; callers must use these values, not the request.
type Format struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	NumPlanes    int
	PlaneSizes   [MaxPlanes]uint32 // sizeimage per plane
	PlaneStrides [MaxPlanes]uint32 // bytesperline per plane, may exceed Width
}

// PlaneDesc describes one plane of an allocated buffer.
type PlaneDesc struct {
	Length    uint32 // plane size in bytes
	Offset    uint32 // mmap offset assigned by the driver
	BytesUsed uint32
}

// BufferDesc describes one allocated buffer as reported by QueryBuffer.
// Queue rebuilds the kernel descriptor from it on every call, mirroring the
// driver protocol of re-sending buffer metadata with each queue operation.
type BufferDesc struct {
	Index  uint32
	Planes []PlaneDesc
}

// Frame identifies a dequeued buffer holding captured data.
type Frame struct {
	Index     uint32
	NumPlanes int
	BytesUsed [MaxPlanes]uint32
	Sequence  uint32
}

// DeviceInfo contains information about a V4L2 capture device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	Caps       uint32
	MPlane     bool
}

// SubdeviceInfo contains information about a V4L2 sub-device node.
type SubdeviceInfo struct {
	DevicePath string
	Name       string
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}
