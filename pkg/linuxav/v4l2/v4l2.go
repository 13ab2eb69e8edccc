//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for multi-planar frame capture, sensor controls, and device enumeration.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Multi-Planar Capture
//
// Open a capture device, negotiate the two-plane NV12M layout, and run the
// memory-mapped streaming protocol:
//
//	dev, err := v4l2.OpenDevice("/dev/video3")
//	format, _ := dev.SetFormatNV12M(1920, 1080)
//	granted, _ := dev.RequestBuffers(4)
//	for i := uint32(0); i < granted; i++ {
//	    desc, _ := dev.QueryBuffer(i)
//	    plane, _ := dev.MapPlane(desc.Planes[0].Offset, desc.Planes[0].Length)
//	    // map remaining planes, then dev.Queue(desc)
//	}
//	dev.StreamOn()
//	frame, _ := dev.Dequeue() // blocks until a buffer is filled
//
// Buffers stay pinned in the kernel until ReleaseBuffers shrinks the
// allocation to zero; closing the descriptor alone is not enough.
//
// # Sensor Controls
//
// Focus and test-pattern controls live on a separate sub-device node:
//
//	sub, err := v4l2.OpenSubdevice("/dev/v4l-subdev10")
//	sub.SetControl(v4l2.CIDFocusAuto, 1)
//
// # Device Enumeration
//
// Use FindDevices and FindSubdevices to discover nodes:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
package v4l2
