package udp_chacha20

import (
	"context"
	"io"
	"net/netip"
	"time"

	"tunlink/application"
	"tunlink/domain/credentials"
	"tunlink/domain/protocol"
	"tunlink/infrastructure/cryptography/chacha20"
	"tunlink/infrastructure/network/ip"
	"tunlink/infrastructure/routing/server_routing/session_management"
	"tunlink/infrastructure/settings"
	"tunlink/infrastructure/telemetry/promexporter"
	"tunlink/infrastructure/telemetry/trafficstats"
)

// TransportHandler drives the server's single UDP socket: read a
// datagram, open the envelope under the source's session key (or the
// bootstrap key for unknown sources), classify the message and run the
// matching handler. Datagrams that fail to authenticate or decode are
// dropped without a reply.
type TransportHandler struct {
	ctx       context.Context
	conf      settings.Server
	tunWriter io.Writer
	conn      application.UDPTransport
	sessions  session_management.SessionManager
	bootstrap *chacha20.Session
	parser    ip.HeaderParser
	logger    application.Logger
	metrics   *promexporter.Metrics
	stats     trafficstats.Recorder
}

func NewTransportHandler(
	ctx context.Context,
	conf settings.Server,
	tunWriter io.Writer,
	conn application.UDPTransport,
	sessions session_management.SessionManager,
	logger application.Logger,
	metrics *promexporter.Metrics,
	collector *trafficstats.Collector,
) (*TransportHandler, error) {
	bootstrap, err := chacha20.NewSession(chacha20.Bootstrap())
	if err != nil {
		return nil, err
	}
	return &TransportHandler{
		ctx:       ctx,
		conf:      conf,
		tunWriter: tunWriter,
		conn:      conn,
		sessions:  sessions,
		bootstrap: bootstrap,
		parser:    ip.NewHeaderParser(),
		logger:    logger,
		metrics:   metrics,
		stats:     trafficstats.NewRecorder(collector),
	}, nil
}

var _ application.TransportHandler = (*TransportHandler)(nil)

func (t *TransportHandler) HandleTransport() error {
	defer t.stats.Flush()

	_ = t.conn.SetReadBuffer(settings.MaxPacketLength)
	_ = t.conn.SetWriteBuffer(settings.MaxPacketLength)

	go func() {
		<-t.ctx.Done()
		_ = t.conn.Close()
	}()

	t.logger.Printf("server listening on %s (UDP)", t.conf.ListenAddrPort())

	buffer := make([]byte, settings.MaxPacketLength+chacha20.EnvelopeOverhead+64)
	oobBuffer := make([]byte, 1024)

	for {
		select {
		case <-t.ctx.Done():
			return nil
		default:
			n, _, _, clientAddr, readErr := t.conn.ReadMsgUDPAddrPort(buffer, oobBuffer)
			if readErr != nil {
				if t.ctx.Err() != nil {
					return nil
				}
				t.logger.Printf("failed to read from UDP: %s", readErr)
				continue
			}
			t.metrics.DatagramReceived()
			t.handleDatagram(clientAddr, buffer[:n])
		}
	}
}

// handleDatagram opens and dispatches one datagram. A decryption
// failure for an address with a live session is retried under the
// bootstrap key and honored only if it reveals a fresh key exchange;
// anything else is a silent drop.
func (t *TransportHandler) handleDatagram(addr netip.AddrPort, datagram []byte) {
	session, sessionErr := t.sessions.GetByAddr(addr)

	var plaintext []byte
	if sessionErr == nil {
		decrypted, decErr := session.Crypto.Decrypt(datagram)
		if decErr != nil {
			if replay, ok := t.tryBootstrapKeyExchange(datagram); ok {
				t.handleKeyExchange(replay, addr)
				return
			}
			t.drop(addr, decErr)
			return
		}
		plaintext = decrypted
	} else {
		decrypted, decErr := t.bootstrap.Decrypt(datagram)
		if decErr != nil {
			t.drop(addr, decErr)
			return
		}
		plaintext = decrypted
	}

	message, decodeErr := protocol.UnmarshalClient(plaintext)
	if decodeErr != nil {
		t.drop(addr, decodeErr)
		return
	}

	if sessionErr == nil {
		_ = t.sessions.Touch(addr, time.Now())
	}

	switch m := message.(type) {
	case protocol.ClientKeyExchange:
		t.handleKeyExchange(m, addr)
	case protocol.ClientAuth:
		t.handleAuth(m, addr)
	case protocol.ClientData:
		t.handleData(m, addr)
	case protocol.ClientPing:
		t.handlePing(addr)
	case protocol.ClientDisconnect:
		t.handleDisconnect(addr)
	}
}

func (t *TransportHandler) tryBootstrapKeyExchange(datagram []byte) (protocol.ClientKeyExchange, bool) {
	plaintext, err := t.bootstrap.Decrypt(datagram)
	if err != nil {
		return protocol.ClientKeyExchange{}, false
	}
	message, err := protocol.UnmarshalClient(plaintext)
	if err != nil {
		return protocol.ClientKeyExchange{}, false
	}
	keyExchange, ok := message.(protocol.ClientKeyExchange)
	return keyExchange, ok
}

func (t *TransportHandler) handleKeyExchange(m protocol.ClientKeyExchange, addr netip.AddrPort) {
	serverRandom, err := chacha20.NewRandomKey()
	if err != nil {
		t.logger.Printf("failed to generate server random: %s", err)
		return
	}
	sessionCrypto, err := chacha20.NewSession(chacha20.DeriveSessionKey(m.Key, serverRandom))
	if err != nil {
		t.logger.Printf("failed to build session crypto: %s", err)
		return
	}

	t.sessions.Insert(session_management.Session{
		Addr:     addr,
		Crypto:   sessionCrypto,
		State:    session_management.StateAwaitingAuth,
		LastSeen: time.Now(),
	})
	t.logger.Printf("key exchange completed for %s", addr)

	t.send(protocol.ServerKeyExchange{Key: serverRandom}, addr, t.bootstrap)
}

func (t *TransportHandler) handleAuth(m protocol.ClientAuth, addr netip.AddrPort) {
	session, err := t.sessions.GetByAddr(addr)
	if err != nil {
		t.metrics.AuthFailure()
		t.send(protocol.ServerAuthError{Reason: "Invalid credentials"}, addr, t.bootstrap)
		return
	}

	if !credentials.Contains(t.conf.ClientCredentials, m.Credentials) {
		// The key exchange created this record provisionally; a failed
		// credential check must leave no residual session state.
		t.sessions.Remove(addr)
		t.metrics.AuthFailure()
		t.logger.Printf("authentication failed for %s", addr)
		t.send(protocol.ServerAuthError{Reason: "Invalid credentials"}, addr, session.Crypto)
		return
	}

	if t.sessions.Len() > t.conf.MaxClients {
		t.sessions.Remove(addr)
		t.logger.Printf("rejecting %s: server is full", addr)
		t.send(protocol.ServerAuthError{Reason: "Server is full"}, addr, session.Crypto)
		return
	}

	_ = t.sessions.MarkAuthenticated(addr)
	t.logger.Printf("client %s authenticated", addr)
	t.send(protocol.ServerAuthOk{}, addr, session.Crypto)
}

func (t *TransportHandler) handleData(m protocol.ClientData, addr netip.AddrPort) {
	session, err := t.sessions.GetByAddr(addr)
	if err != nil {
		t.metrics.DatagramDropped()
		return
	}
	if !session.Authenticated() {
		t.send(protocol.ServerAuthError{Reason: "Invalid credentials"}, addr, session.Crypto)
		return
	}
	if len(m.Payload) > settings.MaxPacketLength {
		t.drop(addr, errOversizedFrame)
		return
	}

	if source, parseErr := t.parser.SourceAddress(m.Payload); parseErr == nil {
		_ = t.sessions.MapInternalIP(addr, source)
	}

	if _, writeErr := t.tunWriter.Write(m.Payload); writeErr != nil {
		t.logger.Printf("failed to write to TUN: %s", writeErr)
		return
	}
	t.stats.RecordRX(uint64(len(m.Payload)))
	t.metrics.BytesReceived(len(m.Payload))
}

func (t *TransportHandler) handlePing(addr netip.AddrPort) {
	session, err := t.sessions.GetByAddr(addr)
	if err != nil {
		t.metrics.DatagramDropped()
		return
	}
	if !session.Authenticated() {
		t.send(protocol.ServerAuthError{Reason: "Invalid credentials"}, addr, session.Crypto)
		return
	}
	t.send(protocol.ServerPong{}, addr, session.Crypto)
}

func (t *TransportHandler) handleDisconnect(addr netip.AddrPort) {
	if _, err := t.sessions.GetByAddr(addr); err != nil {
		return
	}
	t.sessions.Remove(addr)
	t.logger.Printf("client %s disconnected", addr)
}

// NotifyEvicted tells a reaped client its session is gone. Best effort:
// the peer may be long dead.
func (t *TransportHandler) NotifyEvicted(session session_management.Session) {
	t.metrics.SessionEvicted()
	t.send(protocol.ServerDisconnect{Reason: "Stale connection"}, session.Addr, session.Crypto)
}

func (t *TransportHandler) send(message protocol.ServerMessage, addr netip.AddrPort, crypto application.CryptographyService) {
	plaintext, err := protocol.MarshalServer(message)
	if err != nil {
		t.logger.Printf("failed to marshal reply for %s: %s", addr, err)
		return
	}
	envelope, err := crypto.Encrypt(plaintext)
	if err != nil {
		t.logger.Printf("failed to encrypt reply for %s: %s", addr, err)
		return
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.conf.ClientTimeout()))
	if _, err := t.conn.WriteToUDPAddrPort(envelope, addr); err != nil {
		t.logger.Printf("failed to send to %s: %s", addr, err)
		return
	}
	t.metrics.DatagramSent()
}

func (t *TransportHandler) drop(addr netip.AddrPort, reason error) {
	t.metrics.DatagramDropped()
	t.logger.Printf("dropped datagram from %s: %s", addr, reason)
}
