package udp_chacha20

import (
	"context"
	"errors"
	"io"
	"time"

	"tunlink/application"
	"tunlink/domain/protocol"
	"tunlink/infrastructure/network/ip"
	"tunlink/infrastructure/routing/server_routing/session_management"
	"tunlink/infrastructure/settings"
	"tunlink/infrastructure/telemetry/promexporter"
	"tunlink/infrastructure/telemetry/trafficstats"
)

// TunHandler reads frames from the server's TUN device and tunnels each
// one to the session owning the frame's destination address. Frames for
// unknown or unauthenticated destinations are dropped.
type TunHandler struct {
	ctx         context.Context
	reader      io.Reader
	conn        application.UDPTransport
	sessions    session_management.SessionManager
	parser      ip.HeaderParser
	sendTimeout time.Duration
	logger      application.Logger
	metrics     *promexporter.Metrics
	stats       trafficstats.Recorder
}

func NewTunHandler(
	ctx context.Context,
	reader io.Reader,
	conn application.UDPTransport,
	sessions session_management.SessionManager,
	sendTimeout time.Duration,
	logger application.Logger,
	metrics *promexporter.Metrics,
	collector *trafficstats.Collector,
) application.TunHandler {
	return &TunHandler{
		ctx:         ctx,
		reader:      reader,
		conn:        conn,
		sessions:    sessions,
		parser:      ip.NewHeaderParser(),
		sendTimeout: sendTimeout,
		logger:      logger,
		metrics:     metrics,
		stats:       trafficstats.NewRecorder(collector),
	}
}

func (t *TunHandler) HandleTun() error {
	defer t.stats.Flush()

	buffer := make([]byte, settings.MaxPacketLength)

	for {
		select {
		case <-t.ctx.Done():
			return nil
		default:
			n, readErr := t.reader.Read(buffer)
			if readErr != nil {
				if t.ctx.Err() != nil {
					return nil
				}
				if errors.Is(readErr, io.EOF) {
					t.logger.Printf("TUN device closed")
					return readErr
				}
				t.logger.Printf("failed to read from TUN, retrying: %s", readErr)
				continue
			}
			if n == 0 {
				continue
			}
			t.routeFrame(buffer[:n])
		}
	}
}

func (t *TunHandler) routeFrame(frame []byte) {
	destination, err := t.parser.DestinationAddress(frame)
	if err != nil {
		t.logger.Printf("frame dropped: %s", err)
		return
	}

	session, err := t.sessions.GetByInternalIP(destination)
	if err != nil {
		// No tunnel carries this destination yet.
		return
	}
	if !session.Authenticated() {
		return
	}

	plaintext, err := protocol.MarshalServer(protocol.ServerData{Payload: frame})
	if err != nil {
		t.logger.Printf("failed to marshal frame for %s: %s", session.Addr, err)
		return
	}
	envelope, err := session.Crypto.Encrypt(plaintext)
	if err != nil {
		t.logger.Printf("failed to encrypt frame for %s: %s", session.Addr, err)
		return
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(t.sendTimeout))
	if _, err := t.conn.WriteToUDPAddrPort(envelope, session.Addr); err != nil {
		t.logger.Printf("failed to send frame to %s: %s", session.Addr, err)
		return
	}
	t.stats.RecordTX(uint64(len(frame)))
	t.metrics.BytesSent(len(frame))
	t.metrics.DatagramSent()
}
