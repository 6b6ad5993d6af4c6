package udp_chacha20

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"tunlink/application"
	"tunlink/domain/protocol"
	"tunlink/infrastructure/settings"
	"tunlink/infrastructure/telemetry/trafficstats"
)

// Conn is the router's view of the connected UDP socket.
type Conn interface {
	io.ReadWriter
	io.Closer
}

// Router supervises the client's concurrent activities after the
// handshake: the TUN pump, the transport pump and the ping driver. A
// server Disconnect ends the run normally; any other failure is
// surfaced. On shutdown the server is told best-effort that we left.
type Router struct {
	conn      Conn
	tun       application.TunDevice
	crypto    application.CryptographyService
	logger    application.Logger
	collector *trafficstats.Collector
}

func NewRouter(
	conn Conn,
	tun application.TunDevice,
	crypto application.CryptographyService,
	logger application.Logger,
	collector *trafficstats.Collector,
) application.TrafficRouter {
	return &Router{conn: conn, tun: tun, crypto: crypto, logger: logger, collector: collector}
}

func (r *Router) RouteTraffic(ctx context.Context) error {
	errGroup, groupCtx := errgroup.WithContext(ctx)

	clock := &PingClock{}
	tunHandler := NewTunHandler(groupCtx, r.tun, r.conn, r.crypto, r.collector)
	transportHandler := NewTransportHandler(groupCtx, r.conn, r.tun, r.crypto, clock, r.logger, r.collector)
	pingDriver := NewPingDriver(groupCtx, r.conn, r.crypto, clock, settings.PingIntervalSecs*time.Second)

	// TUN -> Transport
	errGroup.Go(func() error {
		return tunHandler.HandleTun()
	})

	// Transport -> TUN
	errGroup.Go(func() error {
		return transportHandler.HandleTransport()
	})

	// Keepalive
	errGroup.Go(func() error {
		return pingDriver.HandlePings()
	})

	// Shutdown watchdog: notify the server, then unblock the pumps.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-groupCtx.Done()
		r.notifyDisconnect()
		_ = r.conn.Close()
		_ = r.tun.Close()
	}()

	err := errGroup.Wait()
	<-closed

	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

func (r *Router) notifyDisconnect() {
	disconnect, err := protocol.MarshalClient(protocol.ClientDisconnect{})
	if err != nil {
		return
	}
	envelope, err := r.crypto.Encrypt(disconnect)
	if err != nil {
		return
	}
	_, _ = r.conn.Write(envelope)
}
