package session_management

import (
	"net/netip"
	"time"

	"tunlink/application"
)

// State tags a session's position in its lifecycle. A session is
// created by the key exchange and only becomes authenticated after the
// credential check; data and ping handling require the latter.
type State uint8

const (
	StateAwaitingAuth State = iota
	StateAuthenticated
)

// Session is the per-client server-side record. The client's UDP source
// address is the session identity; InternalIP is the client's in-tunnel
// address, learned from decrypted Data frames and unset until then.
type Session struct {
	Addr       netip.AddrPort
	Crypto     application.CryptographyService
	State      State
	InternalIP netip.Addr
	LastSeen   time.Time
}

func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated
}
