package server

import (
	"context"
	"fmt"

	"tunlink/infrastructure/listeners/udp_listener"
	"tunlink/infrastructure/logging"
	"tunlink/infrastructure/routing/server_routing/routing/udp_chacha20"
	"tunlink/infrastructure/routing/server_routing/session_management"
	"tunlink/infrastructure/settings"
	"tunlink/infrastructure/telemetry/promexporter"
	"tunlink/infrastructure/telemetry/trafficstats"
	"tunlink/presentation/runners"
)

// Run wires and starts the server: TUN device, UDP socket, session
// table, dispatch loop, TUN reader and liveness sweeper. It blocks
// until ctx is cancelled or a fatal error occurs.
func Run(ctx context.Context, configPath string) error {
	conf, err := settings.ReadServer(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogLogger()

	tunManager, err := runners.NewTunManager(conf.Tun)
	if err != nil {
		return err
	}
	tunDevice, err := tunManager.CreateTunDevice()
	if err != nil {
		return fmt.Errorf("failed to create TUN device: %w", err)
	}
	defer func() {
		_ = tunDevice.Close()
		if disposeErr := tunManager.DisposeTunDevices(); disposeErr != nil {
			logger.Printf("failed to dispose TUN device: %s", disposeErr)
		}
	}()
	// Closing the device on cancellation unblocks the TUN reader.
	go func() {
		<-ctx.Done()
		_ = tunDevice.Close()
	}()

	conn, err := udp_listener.NewUdpListener(conf.ListenAddrPort()).ListenUDP()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	sessions := session_management.NewConcurrentSessionManager(session_management.NewDefaultSessionManager())
	collector := trafficstats.NewCollector()

	var metrics *promexporter.Metrics
	if conf.Metrics.Enabled {
		metrics = promexporter.New(func() float64 { return float64(sessions.Len()) })
		go func() {
			if serveErr := metrics.Serve(ctx, conf.Metrics.Listen); serveErr != nil {
				logger.Printf("metrics endpoint failed: %s", serveErr)
			}
		}()
	}

	transport, err := udp_chacha20.NewTransportHandler(
		ctx, *conf, tunDevice, conn, sessions, logger, metrics, collector,
	)
	if err != nil {
		return err
	}
	tunHandler := udp_chacha20.NewTunHandler(
		ctx, tunDevice, conn, sessions, conf.ClientTimeout(), logger, metrics, collector,
	)
	router := udp_chacha20.NewRouter(transport, tunHandler, sessions, conf.ClientTimeout(), logger)

	err = router.RouteTraffic(ctx)
	logger.Printf("server stopped; rx=%dB tx=%dB", collector.RXBytes(), collector.TXBytes())
	return err
}
