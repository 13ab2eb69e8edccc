//go:build linux && (amd64 || arm64)

package v4l2

import "unsafe"

// Compile-time struct size assertions.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2PlanePixFormat{})]byte{}
	_ [192]byte = [unsafe.Sizeof(v4l2PixFormatMPlane{})]byte{}
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
	_ [20]byte  = [unsafe.Sizeof(v4l2RequestBuffers{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Plane{})]byte{}
	_ [16]byte  = [unsafe.Sizeof(v4l2Timecode{})]byte{}
	_ [88]byte  = [unsafe.Sizeof(v4l2Buffer{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2ExportBuffer{})]byte{}
	_ [8]byte   = [unsafe.Sizeof(v4l2Control{})]byte{}
	_ [16]byte  = [unsafe.Sizeof(timeval{})]byte{}
)

// IOCTL constants for 64-bit architectures. The encoded size field depends
// on the struct layout, so requests taking v4l2Format or v4l2Buffer differ
// from their 32-bit ARM values.
const (
	vidiocQuerycap  = 0x80685600 // _IOR('V', 0, v4l2Capability)
	vidiocEnumFmt   = 0xc0405602 // _IOWR('V', 2, v4l2Fmtdesc)
	vidiocSFmt      = 0xc0d05605 // _IOWR('V', 5, v4l2Format)
	vidiocReqbufs   = 0xc0145608 // _IOWR('V', 8, v4l2RequestBuffers)
	vidiocQuerybuf  = 0xc0585609 // _IOWR('V', 9, v4l2Buffer)
	vidiocQbuf      = 0xc058560f // _IOWR('V', 15, v4l2Buffer)
	vidiocExpbuf    = 0xc0405610 // _IOWR('V', 16, v4l2ExportBuffer)
	vidiocDqbuf     = 0xc0585611 // _IOWR('V', 17, v4l2Buffer)
	vidiocStreamon  = 0x40045612 // _IOW('V', 18, int32)
	vidiocStreamoff = 0x40045613 // _IOW('V', 19, int32)
	vidiocSCtrl     = 0xc008561c // _IOWR('V', 28, v4l2Control)
)

// timeval matches struct timeval: two 64-bit words on these architectures.
type timeval struct {
	sec  int64
	usec int64
}

// v4l2Capability has size 104 bytes.
type v4l2Capability struct {
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	busInfo      [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	deviceCaps   uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

// v4l2Fmtdesc has size 64 bytes.
type v4l2Fmtdesc struct {
	index       uint32    // offset 0
	typ         uint32    // offset 4
	flags       uint32    // offset 8
	description [32]byte  // offset 12
	pixelformat uint32    // offset 44
	mbusCode    uint32    // offset 48
	reserved    [3]uint32 // offset 52
}

// v4l2PlanePixFormat has size 20 bytes.
type v4l2PlanePixFormat struct {
	sizeimage    uint32    // offset 0
	bytesperline uint32    // offset 4
	reserved     [6]uint16 // offset 8
}

// v4l2PixFormatMPlane has size 192 bytes. The kernel declares it packed;
// every member is naturally aligned so the Go layout matches without padding.
type v4l2PixFormatMPlane struct {
	width        uint32                        // offset 0
	height       uint32                        // offset 4
	pixelformat  uint32                        // offset 8
	field        uint32                        // offset 12
	colorspace   uint32                        // offset 16
	planeFmt     [MaxPlanes]v4l2PlanePixFormat // offset 20
	numPlanes    uint8                         // offset 180
	flags        uint8                         // offset 181
	ycbcrEnc     uint8                         // offset 182
	quantization uint8                         // offset 183
	xferFunc     uint8                         // offset 184
	reserved     [7]uint8                      // offset 185
}

// v4l2Format has size 208 bytes on 64-bit: the fmt union holds pointers in
// some variants, so it starts 8-byte aligned at offset 8 and spans 200 bytes.
// Only the pix_mp variant is spelled out; the tail padding covers the rest.
type v4l2Format struct {
	typ   uint32              // offset 0
	_     [4]byte             // padding to union alignment
	pixMP v4l2PixFormatMPlane // offset 8 (union fmt, pix_mp variant)
	_     [8]byte             // union tail up to 200 bytes
}

// v4l2RequestBuffers has size 20 bytes.
type v4l2RequestBuffers struct {
	count        uint32   // offset 0
	typ          uint32   // offset 4
	memory       uint32   // offset 8
	capabilities uint32   // offset 12
	flags        uint8    // offset 16
	reserved     [3]uint8 // offset 17
}

// v4l2Plane has size 64 bytes on 64-bit: the m union holds an unsigned long,
// widening it to 8 bytes. Only the mem_offset variant is used here.
type v4l2Plane struct {
	bytesused  uint32     // offset 0
	length     uint32     // offset 4
	memOffset  uint32     // offset 8 (union m, mem_offset variant for MMAP)
	_          [4]byte    // union tail
	dataOffset uint32     // offset 16
	reserved   [11]uint32 // offset 20
}

// v4l2Timecode has size 16 bytes.
type v4l2Timecode struct {
	typ      uint32   // offset 0
	flags    uint32   // offset 4
	frames   uint8    // offset 8
	seconds  uint8    // offset 9
	minutes  uint8    // offset 10
	hours    uint8    // offset 11
	userbits [4]uint8 // offset 12
}

// v4l2Buffer has size 88 bytes on 64-bit. For multi-planar buffer types the
// m union carries a pointer to a v4l2Plane array and length is its element
// count; keeping it as a typed Go pointer keeps the array reachable for the
// garbage collector across the ioctl.
type v4l2Buffer struct {
	index     uint32       // offset 0
	typ       uint32       // offset 4
	bytesused uint32       // offset 8
	flags     uint32       // offset 12
	field     uint32       // offset 16
	_         [4]byte      // padding to timeval alignment
	timestamp timeval      // offset 24
	timecode  v4l2Timecode // offset 40
	sequence  uint32       // offset 56
	memory    uint32       // offset 60
	planes    *v4l2Plane   // offset 64 (union m, planes variant for MPLANE)
	length    uint32       // offset 72 (plane count for MPLANE)
	reserved2 uint32       // offset 76
	requestFD int32        // offset 80
	_         [4]byte      // padding to 88
}

// v4l2ExportBuffer has size 64 bytes (identical on 32-bit).
type v4l2ExportBuffer struct {
	typ      uint32     // offset 0
	index    uint32     // offset 4
	plane    uint32     // offset 8
	flags    uint32     // offset 12
	fd       int32      // offset 16
	reserved [11]uint32 // offset 20
}

// v4l2Control has size 8 bytes.
type v4l2Control struct {
	id    uint32
	value int32
}
