package udp_chacha20

import (
	"context"
	"fmt"
	"io"

	"tunlink/application"
	"tunlink/domain/protocol"
	"tunlink/infrastructure/settings"
	"tunlink/infrastructure/telemetry/trafficstats"
)

// TunHandler reads frames from the TUN device, wraps each one as a Data
// message and ships it to the server. Read and send failures are fatal
// for the client's run.
type TunHandler struct {
	ctx    context.Context
	reader io.Reader
	conn   io.Writer
	crypto application.CryptographyService
	stats  trafficstats.Recorder
}

func NewTunHandler(
	ctx context.Context,
	reader io.Reader,
	conn io.Writer,
	crypto application.CryptographyService,
	collector *trafficstats.Collector,
) application.TunHandler {
	return &TunHandler{
		ctx:    ctx,
		reader: reader,
		conn:   conn,
		crypto: crypto,
		stats:  trafficstats.NewRecorder(collector),
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
				return fmt.Errorf("could not read a frame from TUN: %w", readErr)
			}
			if n == 0 {
				continue
			}

			plaintext, marshalErr := protocol.MarshalClient(protocol.ClientData{Payload: buffer[:n]})
			if marshalErr != nil {
				return fmt.Errorf("could not marshal frame: %w", marshalErr)
			}
			envelope, encryptErr := t.crypto.Encrypt(plaintext)
			if encryptErr != nil {
				return fmt.Errorf("could not encrypt frame: %w", encryptErr)
			}
			if _, writeErr := t.conn.Write(envelope); writeErr != nil {
				if t.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("could not send frame: %w", writeErr)
			}
			t.stats.RecordTX(uint64(n))
		}
	}
}
