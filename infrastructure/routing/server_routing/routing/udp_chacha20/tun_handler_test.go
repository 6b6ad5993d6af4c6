package udp_chacha20

import (
	"bytes"
	"context"
	"net/netip"
	"testing"
	"time"

	"tunlink/domain/protocol"
	"tunlink/infrastructure/cryptography/chacha20"
	"tunlink/infrastructure/routing/server_routing/session_management"
)

func newRoutingTunHandler(t *testing.T, conn *fakeTransport, sessions session_management.SessionManager) *TunHandler {
	t.Helper()
	handler := NewTunHandler(
		context.Background(), bytes.NewReader(nil), conn, sessions,
		time.Second, discardLogger{}, nil, nil,
	)
	return handler.(*TunHandler)
}

func TestRouteFrame_DeliversToOwningSession(t *testing.T) {
	conn := &fakeTransport{}
	sessions := session_management.NewConcurrentSessionManager(session_management.NewDefaultSessionManager())
	handler := newRoutingTunHandler(t, conn, sessions)

	key, err := chacha20.NewRandomKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	crypto, err := chacha20.NewSession(key)
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	addr := netip.MustParseAddrPort("127.0.0.1:50000")
	sessions.Insert(session_management.Session{
		Addr:     addr,
		Crypto:   crypto,
		State:    session_management.StateAuthenticated,
		LastSeen: time.Now(),
	})
	if err := sessions.MapInternalIP(addr, netip.MustParseAddr("10.0.0.2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := make([]byte, 28)
	frame[0] = 0x45
	copy(frame[16:20], []byte{10, 0, 0, 2}) // destination = client's tunnel address
	handler.routeFrame(frame)

	sent := conn.lastSent(t)
	if sent.addr != addr {
		t.Fatalf("frame sent to %v, expected %v", sent.addr, addr)
	}
	data, ok := openServer(t, crypto, sent.payload).(protocol.ServerData)
	if !ok {
		t.Fatal("expected a Data message")
	}
	if !bytes.Equal(data.Payload, frame) {
		t.Fatal("payload must match the TUN frame")
	}
}

func TestRouteFrame_DropsUnknownDestination(t *testing.T) {
	conn := &fakeTransport{}
	sessions := session_management.NewConcurrentSessionManager(session_management.NewDefaultSessionManager())
	handler := newRoutingTunHandler(t, conn, sessions)

	frame := make([]byte, 28)
	frame[0] = 0x45
	copy(frame[16:20], []byte{10, 9, 9, 9})
	handler.routeFrame(frame)

	if conn.sentCount() != 0 {
		t.Fatal("frames without an owning session must be dropped")
	}
}

func TestRouteFrame_DropsUnauthenticatedSession(t *testing.T) {
	conn := &fakeTransport{}
	sessions := session_management.NewConcurrentSessionManager(session_management.NewDefaultSessionManager())
	handler := newRoutingTunHandler(t, conn, sessions)

	crypto, err := chacha20.NewSession(chacha20.Bootstrap())
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	addr := netip.MustParseAddrPort("127.0.0.1:50001")
	sessions.Insert(session_management.Session{Addr: addr, Crypto: crypto, LastSeen: time.Now()})
	if err := sessions.MapInternalIP(addr, netip.MustParseAddr("10.0.0.3")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := make([]byte, 28)
	frame[0] = 0x45
	copy(frame[16:20], []byte{10, 0, 0, 3})
	handler.routeFrame(frame)

	if conn.sentCount() != 0 {
		t.Fatal("frames for unauthenticated sessions must be dropped")
	}
}

func TestRouteFrame_DropsGarbageFrame(t *testing.T) {
	conn := &fakeTransport{}
	sessions := session_management.NewConcurrentSessionManager(session_management.NewDefaultSessionManager())
	handler := newRoutingTunHandler(t, conn, sessions)

	handler.routeFrame([]byte{0x00, 0x01})

	if conn.sentCount() != 0 {
		t.Fatal("unparsable frames must be dropped")
	}
}
