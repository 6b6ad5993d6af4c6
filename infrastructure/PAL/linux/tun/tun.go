package tun

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ifnamsiz  = 16         // max interface name size, bytes
	tunsetiff = 0x400454ca // ioctl to attach the fd to an interface
	iffTun    = 0x0001
	iffNoPi   = 0x1000 // no packet information header
)

type ifreq struct {
	Name  [ifnamsiz]byte
	Flags uint16
	_     [24]byte
}

// open attaches a fresh /dev/net/tun fd to the named interface.
func open(name string) (*os.File, error) {
	if len(name) >= ifnamsiz {
		return nil, fmt.Errorf("interface name %q too long", name)
	}

	device, err := os.OpenFile("/dev/net/tun", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open /dev/net/tun: %w", err)
	}

	var req ifreq
	copy(req.Name[:], name)
	req.Flags = iffTun | iffNoPi

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, device.Fd(), uintptr(tunsetiff), uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		_ = device.Close()
		return nil, fmt.Errorf("TUNSETIFF failed for %q: %v", name, errno)
	}

	return device, nil
}
