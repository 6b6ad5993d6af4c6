package udp_listener

import (
	"fmt"
	"net"
	"net/netip"
)

// Listener binds the server's single UDP socket.
type Listener interface {
	ListenUDP() (*net.UDPConn, error)
}

type UdpListener struct {
	addr netip.AddrPort
}

func NewUdpListener(addr netip.AddrPort) Listener {
	return &UdpListener{addr: addr}
}

func (u *UdpListener) ListenUDP() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(u.addr))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.addr, err)
	}
	return conn, nil
}
