package application

import (
	"net/netip"
	"time"
)

// UDPTransport is the subset of *net.UDPConn the server engine needs.
// Reads carry the datagram source address, which is the session identity.
type UDPTransport interface {
	ReadMsgUDPAddrPort(b, oob []byte) (n, oobn, flags int, addr netip.AddrPort, err error)
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
	SetWriteDeadline(t time.Time) error
	SetReadBuffer(bytes int) error
	SetWriteBuffer(bytes int) error
	Close() error
}
