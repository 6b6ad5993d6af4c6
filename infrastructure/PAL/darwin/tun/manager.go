package tun

import (
	"fmt"

	"golang.zx2c4.com/wireguard/tun"

	"tunlink/application"
	"tunlink/infrastructure/PAL/exec_commander"
	"tunlink/infrastructure/settings"
)

// Manager creates a darwin utun device via wireguard-go and configures
// it with ifconfig. The kernel picks the utun unit; the configured name
// is not used.
type Manager struct {
	conf      settings.Tun
	commander exec_commander.Commander

	createdName string
}

func NewManager(conf settings.Tun, commander exec_commander.Commander) application.TunManager {
	return &Manager{conf: conf, commander: commander}
}

func (m *Manager) CreateTunDevice() (application.TunDevice, error) {
	device, err := tun.CreateTUN("utun", m.conf.MTU)
	if err != nil {
		return nil, fmt.Errorf("failed to create utun device: %w", err)
	}

	name, err := device.Name()
	if err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to resolve utun name: %w", err)
	}
	m.createdName = name

	// Point-to-point: local and peer address are both ours; the server
	// routes by in-tunnel addresses, not by interface peers.
	addr := m.conf.Address.String()
	output, err := m.commander.CombinedOutput(
		"ifconfig", name, "inet", addr, addr, "netmask", m.conf.Netmask.String(), "up",
	)
	if err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("ifconfig %s failed: %w, output: %s", name, err, output)
	}

	return NewAdapter(device), nil
}

func (m *Manager) DisposeTunDevices() error {
	// utun devices disappear with their fd; nothing to tear down.
	m.createdName = ""
	return nil
}
