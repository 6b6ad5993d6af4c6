package tun

import (
	"fmt"
	"strconv"

	"tunlink/application"
	"tunlink/infrastructure/PAL/exec_commander"
	"tunlink/infrastructure/settings"
)

// Manager creates and disposes the Linux TUN interface described by the
// settings, configuring it with the ip(8) tool.
type Manager struct {
	conf      settings.Tun
	commander exec_commander.Commander
}

func NewManager(conf settings.Tun, commander exec_commander.Commander) application.TunManager {
	return &Manager{conf: conf, commander: commander}
}

func (m *Manager) CreateTunDevice() (application.TunDevice, error) {
	// A leftover interface from a previous run would fail the add below.
	_, _ = m.commander.CombinedOutput("ip", "link", "delete", m.conf.Name)

	if err := m.run("ip", "tuntap", "add", "dev", m.conf.Name, "mode", "tun"); err != nil {
		return nil, err
	}

	bits, err := m.conf.PrefixBits()
	if err != nil {
		return nil, err
	}
	cidr := fmt.Sprintf("%s/%d", m.conf.Address, bits)
	if err := m.run("ip", "addr", "add", cidr, "dev", m.conf.Name); err != nil {
		return nil, err
	}

	if m.conf.MTU != 0 {
		if err := m.run("ip", "link", "set", "dev", m.conf.Name, "mtu", strconv.Itoa(m.conf.MTU)); err != nil {
			return nil, err
		}
	}
	if m.conf.IsUp() {
		if err := m.run("ip", "link", "set", "dev", m.conf.Name, "up"); err != nil {
			return nil, err
		}
	}

	device, err := open(m.conf.Name)
	if err != nil {
		_ = m.DisposeTunDevices()
		return nil, err
	}
	return device, nil
}

func (m *Manager) DisposeTunDevices() error {
	return m.run("ip", "link", "delete", m.conf.Name)
}

func (m *Manager) run(name string, args ...string) error {
	output, err := m.commander.CombinedOutput(name, args...)
	if err != nil {
		return fmt.Errorf("%s %v failed: %w, output: %s", name, args, err, output)
	}
	return nil
}
