package application

import "context"

// TunHandler pumps frames from the TUN device towards the transport.
type TunHandler interface {
	HandleTun() error
}

// TransportHandler pumps datagrams from the transport towards the TUN device.
type TransportHandler interface {
	HandleTransport() error
}

// TrafficRouter runs all handlers of one endpoint until ctx is cancelled
// or a handler fails.
type TrafficRouter interface {
	RouteTraffic(ctx context.Context) error
}
