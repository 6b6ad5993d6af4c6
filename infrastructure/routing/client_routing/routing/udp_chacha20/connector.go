package udp_chacha20

import (
	"fmt"
	"io"
	"time"

	"tunlink/application"
	"tunlink/domain/credentials"
	"tunlink/domain/protocol"
	"tunlink/infrastructure/cryptography/chacha20"
	"tunlink/infrastructure/settings"
)

// DeadlineConn is the connector's view of the connected UDP socket.
type DeadlineConn interface {
	io.ReadWriter
	SetReadDeadline(t time.Time) error
}

// Connector drives the client side of the handshake: a key exchange
// under the bootstrap key followed by authentication under the derived
// session key. Both waits honor the connect timeout independently.
type Connector struct {
	conn    DeadlineConn
	creds   credentials.Credentials
	timeout time.Duration
	logger  application.Logger
}

func NewConnector(conn DeadlineConn, creds credentials.Credentials, timeout time.Duration, logger application.Logger) *Connector {
	return &Connector{conn: conn, creds: creds, timeout: timeout, logger: logger}
}

// Connect performs the handshake and returns the session crypto on
// success. The returned error contains "Authentication failed" exactly
// when the server answered the auth with AuthError (a rejected
// credential or a full server).
func (c *Connector) Connect() (application.CryptographyService, error) {
	clientRandom, err := chacha20.NewRandomKey()
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	keyExchange, err := protocol.MarshalClient(protocol.ClientKeyExchange{Key: clientRandom})
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	envelope, err := chacha20.Seal(chacha20.Bootstrap(), keyExchange)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if _, err := c.conn.Write(envelope); err != nil {
		return nil, fmt.Errorf("handshake: failed to send key exchange: %w", err)
	}

	buffer := make([]byte, settings.MaxPacketLength+chacha20.EnvelopeOverhead)
	reply, err := c.await(buffer, "key exchange")
	if err != nil {
		return nil, err
	}
	plaintext, err := chacha20.Open(chacha20.Bootstrap(), reply)
	if err != nil {
		return nil, fmt.Errorf("handshake: unreadable key exchange reply: %w", err)
	}
	message, err := protocol.UnmarshalServer(plaintext)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	serverExchange, ok := message.(protocol.ServerKeyExchange)
	if !ok {
		return nil, fmt.Errorf("handshake: unexpected reply %T to key exchange", message)
	}

	session, err := chacha20.NewSession(chacha20.DeriveSessionKey(clientRandom, serverExchange.Key))
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	auth, err := protocol.MarshalClient(protocol.ClientAuth{Credentials: c.creds})
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	envelope, err = session.Encrypt(auth)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if _, err := c.conn.Write(envelope); err != nil {
		return nil, fmt.Errorf("handshake: failed to send auth: %w", err)
	}

	reply, err = c.await(buffer, "auth reply")
	if err != nil {
		return nil, err
	}
	plaintext, err = session.Decrypt(reply)
	if err != nil {
		return nil, fmt.Errorf("handshake: unreadable auth reply: %w", err)
	}
	message, err = protocol.UnmarshalServer(plaintext)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	switch m := message.(type) {
	case protocol.ServerAuthOk:
		c.logger.Printf("authenticated with server")
		return session, nil
	case protocol.ServerAuthError:
		return nil, fmt.Errorf("Authentication failed: %s", m.Reason)
	default:
		return nil, fmt.Errorf("handshake: unexpected reply %T to auth", message)
	}
}

// await reads one datagram within the connect timeout.
func (c *Connector) await(buffer []byte, stage string) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	n, err := c.conn.Read(buffer)
	if err != nil {
		return nil, fmt.Errorf("handshake: waiting for %s: %w", stage, err)
	}
	return buffer[:n], nil
}
