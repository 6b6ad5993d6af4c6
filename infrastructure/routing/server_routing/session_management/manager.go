package session_management

import (
	"errors"
	"net/netip"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionManager tracks sessions by external UDP address and by learned
// internal IP. Implementations guarantee at most one session per
// external address; Insert replaces any previous record for the same
// address.
type SessionManager interface {
	Insert(session Session)
	Remove(addr netip.AddrPort)
	GetByAddr(addr netip.AddrPort) (Session, error)
	GetByInternalIP(ip netip.Addr) (Session, error)
	MarkAuthenticated(addr netip.AddrPort) error
	MapInternalIP(addr netip.AddrPort, ip netip.Addr) error
	Touch(addr netip.AddrPort, seen time.Time) error
	Len() int
	// Expired returns sessions whose idle time exceeds timeout at now.
	Expired(now time.Time, timeout time.Duration) []Session
}

// DefaultSessionManager is the unsynchronized implementation; wrap it
// in a ConcurrentSessionManager before sharing across goroutines.
type DefaultSessionManager struct {
	byAddr       map[netip.AddrPort]Session
	byInternalIP map[netip.Addr]netip.AddrPort
}

func NewDefaultSessionManager() SessionManager {
	return &DefaultSessionManager{
		byAddr:       make(map[netip.AddrPort]Session),
		byInternalIP: make(map[netip.Addr]netip.AddrPort),
	}
}

func (m *DefaultSessionManager) Insert(session Session) {
	if old, found := m.byAddr[session.Addr]; found && old.InternalIP.IsValid() {
		delete(m.byInternalIP, old.InternalIP)
	}
	m.byAddr[session.Addr] = session
	if session.InternalIP.IsValid() {
		m.byInternalIP[session.InternalIP] = session.Addr
	}
}

func (m *DefaultSessionManager) Remove(addr netip.AddrPort) {
	session, found := m.byAddr[addr]
	if !found {
		return
	}
	delete(m.byAddr, addr)
	if session.InternalIP.IsValid() {
		delete(m.byInternalIP, session.InternalIP)
	}
}

func (m *DefaultSessionManager) GetByAddr(addr netip.AddrPort) (Session, error) {
	session, found := m.byAddr[addr]
	if !found {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (m *DefaultSessionManager) GetByInternalIP(ip netip.Addr) (Session, error) {
	addr, found := m.byInternalIP[ip]
	if !found {
		return Session{}, ErrSessionNotFound
	}
	return m.GetByAddr(addr)
}

func (m *DefaultSessionManager) MarkAuthenticated(addr netip.AddrPort) error {
	session, found := m.byAddr[addr]
	if !found {
		return ErrSessionNotFound
	}
	session.State = StateAuthenticated
	m.byAddr[addr] = session
	return nil
}

func (m *DefaultSessionManager) MapInternalIP(addr netip.AddrPort, ip netip.Addr) error {
	session, found := m.byAddr[addr]
	if !found {
		return ErrSessionNotFound
	}
	if session.InternalIP == ip {
		return nil
	}
	if session.InternalIP.IsValid() {
		delete(m.byInternalIP, session.InternalIP)
	}
	session.InternalIP = ip
	m.byAddr[addr] = session
	m.byInternalIP[ip] = addr
	return nil
}

// Touch advances LastSeen; it never moves it backwards.
func (m *DefaultSessionManager) Touch(addr netip.AddrPort, seen time.Time) error {
	session, found := m.byAddr[addr]
	if !found {
		return ErrSessionNotFound
	}
	if seen.After(session.LastSeen) {
		session.LastSeen = seen
		m.byAddr[addr] = session
	}
	return nil
}

func (m *DefaultSessionManager) Len() int {
	return len(m.byAddr)
}

func (m *DefaultSessionManager) Expired(now time.Time, timeout time.Duration) []Session {
	var expired []Session
	for _, session := range m.byAddr {
		if now.Sub(session.LastSeen) > timeout {
			expired = append(expired, session)
		}
	}
	return expired
}
