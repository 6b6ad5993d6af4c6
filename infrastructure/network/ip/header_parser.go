package ip

import (
	"fmt"
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// HeaderParser extracts addresses from raw IP frames. The server engine
// uses the source address of inbound frames to learn a client's
// in-tunnel address, and the destination address of outbound frames to
// pick the owning session.
type HeaderParser interface {
	SourceAddress(frame []byte) (netip.Addr, error)
	DestinationAddress(frame []byte) (netip.Addr, error)
}

type DefaultHeaderParser struct{}

var _ HeaderParser = DefaultHeaderParser{}

func NewHeaderParser() HeaderParser { return DefaultHeaderParser{} }

func (DefaultHeaderParser) SourceAddress(frame []byte) (netip.Addr, error) {
	return parse(frame, 12, 8)
}

func (DefaultHeaderParser) DestinationAddress(frame []byte) (netip.Addr, error) {
	return parse(frame, 16, 24)
}

// parse reads the address at v4Offset (IPv4) or v6Offset (IPv6).
// IPv4 source lives at [12:16], destination at [16:20]; IPv6 source at
// [8:24], destination at [24:40].
func parse(frame []byte, v4Offset, v6Offset int) (netip.Addr, error) {
	if len(frame) < 1 {
		return netip.Addr{}, fmt.Errorf("invalid packet: empty header")
	}
	switch version := frame[0] >> 4; version {
	case 4:
		if len(frame) < ipv4.HeaderLen {
			return netip.Addr{}, fmt.Errorf("invalid IPv4 header: too small (%d bytes)", len(frame))
		}
		return netip.AddrFrom4([4]byte(frame[v4Offset : v4Offset+4])), nil
	case 6:
		if len(frame) < ipv6.HeaderLen {
			return netip.Addr{}, fmt.Errorf("invalid IPv6 header: too small (%d bytes)", len(frame))
		}
		var a16 [16]byte
		copy(a16[:], frame[v6Offset:v6Offset+16])
		return netip.AddrFrom16(a16), nil
	default:
		return netip.Addr{}, fmt.Errorf("invalid IP version: %d", version)
	}
}
