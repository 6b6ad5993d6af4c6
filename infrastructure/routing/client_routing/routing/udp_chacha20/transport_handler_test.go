package udp_chacha20

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"tunlink/domain/protocol"
	"tunlink/infrastructure/cryptography/chacha20"
)

type memoryWriter struct {
	mu     sync.Mutex
	writes [][]byte
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	buf := make([]byte, len(p))
	copy(buf, p)
	w.writes = append(w.writes, buf)
	return len(p), nil
}

func (w *memoryWriter) snapshot() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.writes...)
}

type countingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *countingLogger) Printf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, format)
}

func newSessionCrypto(t *testing.T) *chacha20.Session {
	t.Helper()
	key, err := chacha20.NewRandomKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	session, err := chacha20.NewSession(key)
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}
	return session
}

func sealServer(t *testing.T, crypto *chacha20.Session, m protocol.ServerMessage) []byte {
	t.Helper()
	plaintext, err := protocol.MarshalServer(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	envelope, err := crypto.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	return envelope
}

func TestTransportHandler_DataToTun(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer func() { _ = clientEnd.Close() }()

	crypto := newSessionCrypto(t)
	tun := &memoryWriter{}
	clock := &PingClock{}

	ctx, cancel := context.WithCancel(context.Background())
	handler := NewTransportHandler(ctx, clientEnd, tun, crypto, clock, &countingLogger{}, nil)

	done := make(chan error, 1)
	go func() { done <- handler.HandleTransport() }()

	frame := []byte{0x45, 1, 2, 3}
	if _, err := serverEnd.Write(sealServer(t, crypto, protocol.ServerData{Payload: frame})); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(tun.snapshot()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	writes := tun.snapshot()
	if len(writes) != 1 || !bytes.Equal(writes[0], frame) {
		t.Fatalf("expected frame on TUN, got %v", writes)
	}

	cancel()
	_ = clientEnd.Close()
	if err := <-done; err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
}

func TestTransportHandler_DisconnectEndsRun(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer func() { _ = clientEnd.Close() }()

	crypto := newSessionCrypto(t)
	handler := NewTransportHandler(
		context.Background(), clientEnd, &memoryWriter{}, crypto, &PingClock{}, &countingLogger{}, nil,
	)

	done := make(chan error, 1)
	go func() { done <- handler.HandleTransport() }()

	if _, err := serverEnd.Write(sealServer(t, crypto, protocol.ServerDisconnect{Reason: "Stale connection"})); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrSessionClosed) {
			t.Fatalf("expected ErrSessionClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler must return on Disconnect")
	}
}

func TestTransportHandler_DropsGarbage(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()
	defer func() { _ = clientEnd.Close() }()

	crypto := newSessionCrypto(t)
	tun := &memoryWriter{}
	logger := &countingLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	handler := NewTransportHandler(ctx, clientEnd, tun, crypto, &PingClock{}, logger, nil)

	done := make(chan error, 1)
	go func() { done <- handler.HandleTransport() }()

	// Not decryptable under the session key.
	if _, err := serverEnd.Write(bytes.Repeat([]byte{0xFF}, 48)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Then a valid frame proves the loop survived.
	if _, err := serverEnd.Write(sealServer(t, crypto, protocol.ServerData{Payload: []byte{9}})); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(tun.snapshot()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(tun.snapshot()) != 1 {
		t.Fatal("valid traffic must flow after a dropped datagram")
	}

	cancel()
	_ = clientEnd.Close()
	<-done
}

func TestPingClock_Latency(t *testing.T) {
	clock := &PingClock{}
	if _, ok := clock.Latency(time.Now()); ok {
		t.Fatal("latency must be unknown before the first ping")
	}
	sent := time.Now()
	clock.MarkSent(sent)
	latency, ok := clock.Latency(sent.Add(30 * time.Millisecond))
	if !ok || latency != 30*time.Millisecond {
		t.Fatalf("unexpected latency %v ok=%v", latency, ok)
	}
}

func TestPingDriver_SendsPings(t *testing.T) {
	crypto := newSessionCrypto(t)
	sink := &memoryWriter{}
	clock := &PingClock{}

	ctx, cancel := context.WithCancel(context.Background())
	driver := NewPingDriver(ctx, sink, crypto, clock, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- driver.HandlePings() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.snapshot()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected driver error: %v", err)
	}

	writes := sink.snapshot()
	if len(writes) == 0 {
		t.Fatal("expected at least one ping")
	}
	plaintext, err := crypto.Decrypt(writes[0])
	if err != nil {
		t.Fatalf("decrypt ping: %v", err)
	}
	message, err := protocol.UnmarshalClient(plaintext)
	if err != nil {
		t.Fatalf("unmarshal ping: %v", err)
	}
	if _, ok := message.(protocol.ClientPing); !ok {
		t.Fatalf("expected Ping, got %T", message)
	}
	if _, ok := clock.Latency(time.Now()); !ok {
		t.Fatal("clock must record the send instant")
	}
}
