package tun

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
	"golang.zx2c4.com/wireguard/tun"

	"tunlink/application"
	"tunlink/infrastructure/settings"
)

// utunHeaderLen is the address-family header the darwin utun driver
// prepends to every frame.
const utunHeaderLen = 4

// Adapter turns a wireguard tun.Device into an application.TunDevice.
// All buffers and slice headers are allocated once and reused, so the
// steady state is allocation-free.
type Adapter struct {
	device tun.Device

	readBuffer  []byte
	writeBuffer []byte

	readVec  [][]byte
	writeVec [][]byte
	sizes    []int
}

func NewAdapter(device tun.Device) application.TunDevice {
	readBuffer := make([]byte, settings.MaxPacketLength+utunHeaderLen)
	writeBuffer := make([]byte, settings.MaxPacketLength+utunHeaderLen)
	return &Adapter{
		device:      device,
		readBuffer:  readBuffer,
		writeBuffer: writeBuffer,
		readVec:     [][]byte{readBuffer},
		writeVec:    [][]byte{writeBuffer},
		sizes:       []int{0},
	}
}

// Read copies one IP frame, stripped of the utun header, into p.
func (a *Adapter) Read(p []byte) (int, error) {
	a.sizes[0] = 0
	if _, err := a.device.Read(a.readVec, a.sizes, utunHeaderLen); err != nil {
		return 0, err
	}
	n := a.sizes[0]
	if n > len(p) {
		return 0, errors.New("destination slice too small")
	}
	copy(p, a.readBuffer[utunHeaderLen:utunHeaderLen+n])
	return n, nil
}

// Write prepends the address-family header and transmits p.
func (a *Adapter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, errors.New("empty frame")
	}
	if len(p)+utunHeaderLen > len(a.writeBuffer) {
		return 0, errors.New("frame exceeds max size")
	}

	family := uint32(unix.AF_INET)
	if p[0]>>4 == 6 {
		family = unix.AF_INET6
	}
	binary.BigEndian.PutUint32(a.writeBuffer[:utunHeaderLen], family)
	copy(a.writeBuffer[utunHeaderLen:], p)
	a.writeVec[0] = a.writeBuffer[:len(p)+utunHeaderLen]

	if _, err := a.device.Write(a.writeVec, utunHeaderLen); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (a *Adapter) Close() error { return a.device.Close() }
