package client

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"tunlink/application"
	"tunlink/infrastructure/logging"
	"tunlink/infrastructure/routing/client_routing/routing/udp_chacha20"
	"tunlink/infrastructure/settings"
	"tunlink/infrastructure/telemetry/trafficstats"
	"tunlink/presentation/runners"
)

// Run wires and starts the client: TUN device, connected UDP socket,
// handshake, then the pumps. A server-side disconnect ends the run
// normally; transport failures trigger a reconnect when the
// configuration asks for one. The TUN device is recreated per attempt
// because shutting a session down closes it.
func Run(ctx context.Context, configPath string) error {
	conf, err := settings.ReadClient(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogLogger()

	tunManager, err := runners.NewTunManager(conf.Tun)
	if err != nil {
		return err
	}

	collector := trafficstats.NewCollector()
	defer func() {
		logger.Printf("client stopped; rx=%dB tx=%dB", collector.RXBytes(), collector.TXBytes())
	}()

	for {
		err := runOnce(ctx, conf, tunManager, collector, logger)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return nil
		case strings.Contains(err.Error(), "Authentication failed"):
			return err
		case conf.ReconnectInterval() > 0:
			logger.Printf("session failed: %s; reconnecting in %v", err, conf.ReconnectInterval())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(conf.ReconnectInterval()):
			}
		default:
			return err
		}
	}
}

func runOnce(
	ctx context.Context,
	conf *settings.Client,
	tunManager application.TunManager,
	collector *trafficstats.Collector,
	logger application.Logger,
) error {
	local := net.UDPAddrFromAddrPort(conf.ListenAddrPort())
	remote := net.UDPAddrFromAddrPort(conf.ServerAddrPort())
	conn, err := net.DialUDP("udp", local, remote)
	if err != nil {
		return fmt.Errorf("failed to dial server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	logger.Printf("connecting to %s", conf.ServerAddrPort())
	connector := udp_chacha20.NewConnector(conn, conf.Credentials, conf.ConnectTimeout(), logger)
	crypto, err := connector.Connect()
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

	router := udp_chacha20.NewRouter(conn, tunDevice, crypto, logger, collector)
	return router.RouteTraffic(ctx)
}
