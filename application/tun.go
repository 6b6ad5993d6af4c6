package application

import "io"

// TunDevice is a full-duplex byte channel over an OS TUN interface.
// Each Read yields exactly one IP frame, each Write consumes one.
type TunDevice interface {
	io.ReadWriteCloser
}

// TunManager owns the lifecycle of a TUN interface.
type TunManager interface {
	CreateTunDevice() (TunDevice, error)
	DisposeTunDevices() error
}
