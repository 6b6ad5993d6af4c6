package udp_chacha20

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"tunlink/application"
	"tunlink/infrastructure/routing/server_routing/session_management"
)

// Router supervises the three long-lived server activities: the UDP
// dispatch loop, the TUN reader and the liveness sweeper. Cancelling
// the context shuts all of them down.
type Router struct {
	transport *TransportHandler
	tun       application.TunHandler
	sessions  session_management.SessionManager
	timeout   time.Duration
	logger    application.Logger
}

func NewRouter(
	transport *TransportHandler,
	tun application.TunHandler,
	sessions session_management.SessionManager,
	clientTimeout time.Duration,
	logger application.Logger,
) application.TrafficRouter {
	return &Router{
		transport: transport,
		tun:       tun,
		sessions:  sessions,
		timeout:   clientTimeout,
		logger:    logger,
	}
}

func (r *Router) RouteTraffic(ctx context.Context) error {
	errGroup, groupCtx := errgroup.WithContext(ctx)

	// Transport -> TUN
	errGroup.Go(func() error {
		return r.transport.HandleTransport()
	})

	// TUN -> Transport
	errGroup.Go(func() error {
		return r.tun.HandleTun()
	})

	// Liveness sweeper
	errGroup.Go(func() error {
		session_management.RunIdleReaperLoop(
			groupCtx, r.sessions, r.timeout, r.timeout/2, r.transport.NotifyEvicted, r.logger,
		)
		return nil
	})

	return errGroup.Wait()
}
