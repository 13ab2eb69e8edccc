//go:build linux

package v4l2

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MissingCapabilityError reports a capture device that lacks a capability
// bit required for multi-planar streaming.
type MissingCapabilityError struct {
	Path string
	Want uint32
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("%s: missing required capability %#08x", e.Path, e.Want)
}

// Device is an open V4L2 multi-planar capture device.
//
// A Device is owned by a single goroutine for its whole lifetime; its
// methods are not safe for concurrent use.
type Device struct {
	fd        int
	path      string
	caps      Capability
	numPlanes int

	// ioctl scratch reused across Queue and Dequeue calls.
	qPlanes   [MaxPlanes]v4l2Plane
	deqPlanes [MaxPlanes]v4l2Plane
}

// OpenDevice opens a capture device and validates that it advertises both
// multi-planar capture and streaming I/O; the descriptor is closed again on
// a failed check. The device is opened blocking so Dequeue waits for the
// next filled buffer.
func OpenDevice(path string) (*Device, error) {
	fd, err := open(path, unix.O_RDWR)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	d := &Device{fd: fd, path: path, numPlanes: NV12MPlanes}
	caps, err := d.queryCap()
	if err != nil {
		close(fd)
		return nil, fmt.Errorf("query capabilities on %s: %w", path, err)
	}
	d.caps = caps

	effective := caps.Effective()
	for _, want := range []uint32{CapVideoCaptureMPlane, CapStreaming} {
		if effective&want == 0 {
			close(fd)
			return nil, &MissingCapabilityError{Path: path, Want: want}
		}
	}
	return d, nil
}

// Path returns the filesystem path the device was opened from.
func (d *Device) Path() string { return d.path }

// Capability returns the device identity reported at open time.
func (d *Device) Capability() Capability { return d.caps }

func (d *Device) queryCap() (Capability, error) {
	raw := v4l2Capability{}
	if err := ioctl(d.fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, err
	}
	return Capability{
		Driver:       cstr(raw.driver[:]),
		Card:         cstr(raw.card[:]),
		BusInfo:      cstr(raw.busInfo[:]),
		Version:      raw.version,
		Capabilities: raw.capabilities,
		DeviceCaps:   raw.deviceCaps,
	}, nil
}

// SetFormatNV12M negotiates the two-plane NV12 layout at the requested
// geometry. The driver may adjust geometry and plane sizes; the returned
// Format is what was actually granted and must be used downstream.
func (d *Device) SetFormatNV12M(width, height uint32) (Format, error) {
	f := v4l2Format{typ: BufTypeVideoCaptureMPlane}
	f.pixMP.width = width
	f.pixMP.height = height
	f.pixMP.pixelformat = PixFmtNV12M
	f.pixMP.field = FieldNone
	f.pixMP.numPlanes = NV12MPlanes

	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, fmt.Errorf("set NV12M format on %s: %w", d.path, err)
	}

	out := Format{
		Width:       f.pixMP.width,
		Height:      f.pixMP.height,
		PixelFormat: f.pixMP.pixelformat,
		NumPlanes:   int(f.pixMP.numPlanes),
	}
	if out.NumPlanes > MaxPlanes {
		out.NumPlanes = MaxPlanes
	}
	for p := 0; p < out.NumPlanes; p++ {
		out.PlaneSizes[p] = f.pixMP.planeFmt[p].sizeimage
		out.PlaneStrides[p] = f.pixMP.planeFmt[p].bytesperline
	}
	d.numPlanes = out.NumPlanes
	return out, nil
}

// RequestBuffers asks the driver to allocate count memory-mapped buffers and
// returns the number actually granted, which may be lower than requested.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	req := v4l2RequestBuffers{
		count:  count,
		typ:    BufTypeVideoCaptureMPlane,
		memory: MemoryMMap,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("request %d buffers on %s: %w", count, d.path, err)
	}
	return req.count, nil
}

// ReleaseBuffers shrinks the driver's buffer allocation to zero, forcing the
// kernel to free any buffers still pinned. Drivers do not free capture
// buffers when the descriptor is closed, so skipping this leaks kernel
// memory across process exit. All planes must be unmapped first.
func (d *Device) ReleaseBuffers() error {
	req := v4l2RequestBuffers{
		count:  0,
		typ:    BufTypeVideoCaptureMPlane,
		memory: MemoryMMap,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("release buffers on %s: %w", d.path, err)
	}
	return nil
}

// QueryBuffer fetches the descriptor of one allocated buffer, including the
// mmap offset and byte length of each plane.
func (d *Device) QueryBuffer(index uint32) (BufferDesc, error) {
	var planes [MaxPlanes]v4l2Plane
	buf := v4l2Buffer{
		index:  index,
		typ:    BufTypeVideoCaptureMPlane,
		memory: MemoryMMap,
		length: uint32(d.numPlanes),
		planes: &planes[0],
	}
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return BufferDesc{}, fmt.Errorf("query buffer %d on %s: %w", index, d.path, err)
	}

	desc := BufferDesc{Index: index, Planes: make([]PlaneDesc, d.numPlanes)}
	for p := 0; p < d.numPlanes; p++ {
		desc.Planes[p] = PlaneDesc{
			Length:    planes[p].length,
			Offset:    planes[p].memOffset,
			BytesUsed: planes[p].bytesused,
		}
	}
	return desc, nil
}

// ExportBuffer exports one plane of an allocated buffer as a DMA file
// descriptor for zero-copy sharing with another subsystem. The caller owns
// the returned descriptor.
func (d *Device) ExportBuffer(index uint32, plane int) (int, error) {
	exp := v4l2ExportBuffer{
		typ:   BufTypeVideoCaptureMPlane,
		index: index,
		plane: uint32(plane),
	}
	if err := ioctl(d.fd, vidiocExpbuf, unsafe.Pointer(&exp)); err != nil {
		return -1, fmt.Errorf("export buffer %d plane %d on %s: %w", index, plane, d.path, err)
	}
	return int(exp.fd), nil
}

// MapPlane memory-maps one plane into the process at the offset reported by
// QueryBuffer. The mapping is shared with the driver.
func (d *Device) MapPlane(offset, length uint32) ([]byte, error) {
	data, err := unix.Mmap(d.fd, int64(offset), int(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap plane at offset %#x on %s: %w", offset, d.path, err)
	}
	return data, nil
}

// UnmapPlane releases a mapping created by MapPlane.
func UnmapPlane(data []byte) error {
	return unix.Munmap(data)
}

// Queue hands the buffer described by desc to the driver for filling. The
// kernel descriptor is rebuilt from desc on every call.
func (d *Device) Queue(desc BufferDesc) error {
	n := len(desc.Planes)
	if n > MaxPlanes {
		n = MaxPlanes
	}
	for p := 0; p < n; p++ {
		d.qPlanes[p] = v4l2Plane{
			length:    desc.Planes[p].Length,
			memOffset: desc.Planes[p].Offset,
		}
	}
	buf := v4l2Buffer{
		index:  desc.Index,
		typ:    BufTypeVideoCaptureMPlane,
		memory: MemoryMMap,
		length: uint32(n),
		planes: &d.qPlanes[0],
	}
	if err := ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("queue buffer %d on %s: %w", desc.Index, d.path, err)
	}
	return nil
}

// Dequeue blocks until the driver hands back a filled buffer and returns
// which buffer it was. EINTR is passed through to the caller, which decides
// whether a pending termination request or another retry applies.
func (d *Device) Dequeue() (Frame, error) {
	buf := v4l2Buffer{
		typ:    BufTypeVideoCaptureMPlane,
		memory: MemoryMMap,
		length: uint32(d.numPlanes),
		planes: &d.deqPlanes[0],
	}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return Frame{}, fmt.Errorf("dequeue on %s: %w", d.path, err)
	}

	frame := Frame{
		Index:     buf.index,
		NumPlanes: d.numPlanes,
		Sequence:  buf.sequence,
	}
	for p := 0; p < frame.NumPlanes; p++ {
		frame.BytesUsed[p] = d.deqPlanes[p].bytesused
	}
	return frame, nil
}

// StreamOn starts capture streaming.
func (d *Device) StreamOn() error {
	typ := int32(BufTypeVideoCaptureMPlane)
	if err := ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("stream on for %s: %w", d.path, err)
	}
	return nil
}

// StreamOff stops capture streaming, returning every queued buffer to the
// driver's free pool.
func (d *Device) StreamOff() error {
	typ := int32(BufTypeVideoCaptureMPlane)
	if err := ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("stream off for %s: %w", d.path, err)
	}
	return nil
}

// Close releases the device descriptor. Safe to call twice. Buffers must be
// released first; the driver keeps them pinned otherwise.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := close(d.fd)
	d.fd = -1
	return err
}
