package udp_chacha20

import (
	"context"
	"fmt"
	"io"
	"time"

	"tunlink/application"
	"tunlink/domain/protocol"
	"tunlink/infrastructure/cryptography/chacha20"
	"tunlink/infrastructure/settings"
	"tunlink/infrastructure/telemetry/trafficstats"
)

// TransportHandler receives server datagrams and dispatches them: Data
// goes to the TUN device, Pong feeds the latency observer, Disconnect
// ends the run. Datagrams that fail to open or decode are dropped.
type TransportHandler struct {
	ctx    context.Context
	conn   io.Reader
	tun    io.Writer
	crypto application.CryptographyService
	clock  *PingClock
	logger application.Logger
	stats  trafficstats.Recorder
}

func NewTransportHandler(
	ctx context.Context,
	conn io.Reader,
	tun io.Writer,
	crypto application.CryptographyService,
	clock *PingClock,
	logger application.Logger,
	collector *trafficstats.Collector,
) application.TransportHandler {
	return &TransportHandler{
		ctx:    ctx,
		conn:   conn,
		tun:    tun,
		crypto: crypto,
		clock:  clock,
		logger: logger,
		stats:  trafficstats.NewRecorder(collector),
	}
}

func (t *TransportHandler) HandleTransport() error {
	defer t.stats.Flush()

	buffer := make([]byte, settings.MaxPacketLength+chacha20.EnvelopeOverhead+64)

	for {
		select {
		case <-t.ctx.Done():
			return nil
		default:
			n, readErr := t.conn.Read(buffer)
			if readErr != nil {
				if t.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("could not read from server: %w", readErr)
			}

			plaintext, decryptErr := t.crypto.Decrypt(buffer[:n])
			if decryptErr != nil {
				t.logger.Printf("dropped datagram: %s", decryptErr)
				continue
			}
			message, decodeErr := protocol.UnmarshalServer(plaintext)
			if decodeErr != nil {
				t.logger.Printf("dropped datagram: %s", decodeErr)
				continue
			}

			if err := t.dispatch(message); err != nil {
				return err
			}
		}
	}
}

func (t *TransportHandler) dispatch(message protocol.ServerMessage) error {
	switch m := message.(type) {
	case protocol.ServerData:
		if _, err := t.tun.Write(m.Payload); err != nil {
			if t.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to write to TUN: %w", err)
		}
		t.stats.RecordRX(uint64(len(m.Payload)))
	case protocol.ServerPong:
		if latency, ok := t.clock.Latency(time.Now()); ok {
			t.logger.Printf("pong from server, latency %v", latency)
		}
	case protocol.ServerDisconnect:
		t.logger.Printf("server closed the session: %s", m.Reason)
		return ErrSessionClosed
	case protocol.ServerError:
		t.logger.Printf("server error: %s", m.Message)
	case protocol.ServerAuthError:
		t.logger.Printf("server rejected the session: %s", m.Reason)
	default:
		t.logger.Printf("dropped unexpected %T from server", message)
	}
	return nil
}
