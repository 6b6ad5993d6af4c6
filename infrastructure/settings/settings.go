package settings

import (
	"fmt"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// MaxPacketLength is the largest IP frame either endpoint accepts
	// from a TUN device or a decrypted datagram.
	MaxPacketLength = 65536

	DefaultMaxClients         = 10
	DefaultClientTimeoutSecs  = 30
	DefaultConnectTimeoutSecs = 5
	// PingIntervalSecs is the client keepalive cadence.
	PingIntervalSecs = 5
)

// Tun describes the local TUN interface of an endpoint.
type Tun struct {
	Name    string `yaml:"name"`
	Address Addr   `yaml:"address"`
	Netmask Addr   `yaml:"netmask"`
	MTU     int    `yaml:"mtu"`
	Up      *bool  `yaml:"up"`
}

func defaultTun() Tun {
	return Tun{
		Name:    "tun0",
		Address: AddrOf(netip.AddrFrom4([4]byte{10, 0, 0, 1})),
		Netmask: AddrOf(netip.AddrFrom4([4]byte{255, 255, 255, 0})),
		MTU:     1500,
	}
}

// IsUp reports whether the interface should be brought up after
// configuration. Unset means up.
func (t Tun) IsUp() bool {
	return t.Up == nil || *t.Up
}

// PrefixBits converts the dotted netmask into a prefix length.
func (t Tun) PrefixBits() (int, error) {
	if !t.Netmask.Is4() {
		return 0, fmt.Errorf("netmask must be an IPv4 address, got %v", t.Netmask)
	}
	mask := t.Netmask.As4()
	ones := 0
	seenZero := false
	for _, b := range mask {
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<bit) != 0 {
				if seenZero {
					return 0, fmt.Errorf("non-contiguous netmask %v", t.Netmask)
				}
				ones++
			} else {
				seenZero = true
			}
		}
	}
	return ones, nil
}

func (t *Tun) applyDefaults() {
	d := defaultTun()
	if t.Name == "" {
		t.Name = d.Name
	}
	if !t.Address.IsValid() {
		t.Address = d.Address
	}
	if !t.Netmask.IsValid() {
		t.Netmask = d.Netmask
	}
	if t.MTU == 0 {
		t.MTU = d.MTU
	}
}

// Metrics gates the optional prometheus exposition endpoint.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

func readYAML(path string, out any) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(contents, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
