//go:build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func open(path string, flags int) (int, error) {
	return unix.Open(path, flags, 0)
}

func close(fd int) error {
	return unix.Close(fd)
}

// CloseFD closes a raw descriptor obtained from ExportBuffer.
func CloseFD(fd int) error {
	return unix.Close(fd)
}
