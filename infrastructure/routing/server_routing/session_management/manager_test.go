package session_management

import (
	"errors"
	"net/netip"
	"testing"
	"time"
)

func addr(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}

func TestDefaultSessionManager_InsertGetRemove(t *testing.T) {
	m := NewDefaultSessionManager()
	a := addr("127.0.0.1:4000")

	if _, err := m.GetByAddr(a); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	m.Insert(Session{Addr: a, LastSeen: time.Now()})
	if m.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Len())
	}
	session, err := m.GetByAddr(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Addr != a || session.Authenticated() {
		t.Fatalf("unexpected session %+v", session)
	}

	m.Remove(a)
	if _, err := m.GetByAddr(a); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("removed session must not be found")
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty manager, got %d", m.Len())
	}

	// Removing twice is a no-op.
	m.Remove(a)
}

func TestDefaultSessionManager_AtMostOnePerAddr(t *testing.T) {
	m := NewDefaultSessionManager()
	a := addr("127.0.0.1:4000")

	m.Insert(Session{Addr: a})
	m.Insert(Session{Addr: a})
	m.Insert(Session{Addr: a})

	if m.Len() != 1 {
		t.Fatalf("expected 1 session for one address, got %d", m.Len())
	}
}

func TestDefaultSessionManager_InsertReplacesRecord(t *testing.T) {
	m := NewDefaultSessionManager()
	a := addr("127.0.0.1:4000")
	internal := netip.MustParseAddr("10.0.0.2")

	m.Insert(Session{Addr: a})
	if err := m.MarkAuthenticated(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.MapInternalIP(a, internal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A replacing insert resets state and drops the stale internal index.
	m.Insert(Session{Addr: a})
	session, err := m.GetByAddr(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Authenticated() {
		t.Fatal("replacement must reset authentication")
	}
	if _, err := m.GetByInternalIP(internal); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("stale internal IP index must be dropped on replace")
	}
}

func TestDefaultSessionManager_InternalIPIndex(t *testing.T) {
	m := NewDefaultSessionManager()
	a := addr("127.0.0.1:4000")
	first := netip.MustParseAddr("10.0.0.2")
	second := netip.MustParseAddr("10.0.0.3")

	if err := m.MapInternalIP(a, first); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("mapping an unknown session must fail")
	}

	m.Insert(Session{Addr: a})
	if err := m.MapInternalIP(a, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session, err := m.GetByInternalIP(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Addr != a {
		t.Fatalf("unexpected session %+v", session)
	}

	// Remapping moves the index.
	if err := m.MapInternalIP(a, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.GetByInternalIP(first); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("old internal IP must be unmapped")
	}
	if _, err := m.GetByInternalIP(second); err != nil {
		t.Fatalf("new internal IP must resolve: %v", err)
	}

	m.Remove(a)
	if _, err := m.GetByInternalIP(second); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("internal index must be dropped with the session")
	}
}

func TestDefaultSessionManager_TouchIsMonotonic(t *testing.T) {
	m := NewDefaultSessionManager()
	a := addr("127.0.0.1:4000")
	base := time.Now()

	m.Insert(Session{Addr: a, LastSeen: base})
	if err := m.Touch(a, base.Add(time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session, _ := m.GetByAddr(a)
	if !session.LastSeen.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected last seen %v", session.LastSeen)
	}

	// An earlier instant must not move LastSeen backwards.
	if err := m.Touch(a, base.Add(-time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session, _ = m.GetByAddr(a)
	if !session.LastSeen.Equal(base.Add(time.Second)) {
		t.Fatal("LastSeen must be monotonically non-decreasing")
	}

	if err := m.Touch(addr("127.0.0.1:9"), base); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("touching an unknown session must fail")
	}
}

func TestDefaultSessionManager_Expired(t *testing.T) {
	m := NewDefaultSessionManager()
	now := time.Now()

	m.Insert(Session{Addr: addr("127.0.0.1:1"), LastSeen: now.Add(-3 * time.Second)})
	m.Insert(Session{Addr: addr("127.0.0.1:2"), LastSeen: now.Add(-1 * time.Second)})
	m.Insert(Session{Addr: addr("127.0.0.1:3"), LastSeen: now})

	expired := m.Expired(now, 2*time.Second)
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired session, got %d", len(expired))
	}
	if expired[0].Addr != addr("127.0.0.1:1") {
		t.Fatalf("unexpected expired session %v", expired[0].Addr)
	}
}
