package udp_chacha20

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"tunlink/application"
	"tunlink/domain/protocol"
)

// PingClock records when the last ping left so the transport handler
// can derive a round-trip latency when the matching Pong arrives.
type PingClock struct {
	sentAtNanos atomic.Int64
}

func (p *PingClock) MarkSent(at time.Time) {
	p.sentAtNanos.Store(at.UnixNano())
}

// Latency returns the elapsed time since the last ping was sent, and
// false if none was sent yet.
func (p *PingClock) Latency(now time.Time) (time.Duration, bool) {
	sent := p.sentAtNanos.Load()
	if sent == 0 {
		return 0, false
	}
	return now.Sub(time.Unix(0, sent)), true
}

// PingDriver sends a keepalive ping at a fixed cadence. A failed send
// is fatal for the run.
type PingDriver struct {
	ctx      context.Context
	conn     io.Writer
	crypto   application.CryptographyService
	clock    *PingClock
	interval time.Duration
}

func NewPingDriver(
	ctx context.Context,
	conn io.Writer,
	crypto application.CryptographyService,
	clock *PingClock,
	interval time.Duration,
) *PingDriver {
	return &PingDriver{ctx: ctx, conn: conn, crypto: crypto, clock: clock, interval: interval}
}

func (p *PingDriver) HandlePings() error {
	ping, err := protocol.MarshalClient(protocol.ClientPing{})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case <-ticker.C:
			envelope, encryptErr := p.crypto.Encrypt(ping)
			if encryptErr != nil {
				return fmt.Errorf("failed to encrypt ping: %w", encryptErr)
			}
			p.clock.MarkSent(time.Now())
			if _, writeErr := p.conn.Write(envelope); writeErr != nil {
				if p.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to send ping: %w", writeErr)
			}
		}
	}
}
