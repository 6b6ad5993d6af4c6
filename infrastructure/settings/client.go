package settings

import (
	"fmt"
	"net/netip"
	"time"

	"tunlink/domain/credentials"
)

// Client holds the client endpoint configuration.
type Client struct {
	ServerAddress Addr   `yaml:"server_address"`
	ServerPort    uint16 `yaml:"server_port"`

	ListenAddress Addr   `yaml:"listen_address"`
	ListenPort    uint16 `yaml:"listen_port"`

	ConnectTimeoutSecs    int `yaml:"connect_timeout_secs"`
	ReconnectIntervalSecs int `yaml:"reconnect_interval_secs"`

	Credentials credentials.Credentials `yaml:"credentials"`

	Tun Tun `yaml:"tun"`
}

func (c *Client) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSecs) * time.Second
}

func (c *Client) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalSecs) * time.Second
}

func (c *Client) ServerAddrPort() netip.AddrPort {
	return netip.AddrPortFrom(c.ServerAddress.Addr, c.ServerPort)
}

func (c *Client) ListenAddrPort() netip.AddrPort {
	return netip.AddrPortFrom(c.ListenAddress.Addr, c.ListenPort)
}

func (c *Client) applyDefaults() {
	if !c.ListenAddress.IsValid() {
		c.ListenAddress = AddrOf(netip.IPv4Unspecified())
	}
	if c.ConnectTimeoutSecs == 0 {
		c.ConnectTimeoutSecs = DefaultConnectTimeoutSecs
	}
	c.Tun.applyDefaults()
}

func (c *Client) validate() error {
	if !c.ServerAddress.IsValid() {
		return fmt.Errorf("server_address is required")
	}
	if c.ServerPort == 0 {
		return fmt.Errorf("server_port is required")
	}
	if c.Credentials.Username == "" {
		return fmt.Errorf("credentials are required")
	}
	return nil
}

// ReadClient loads, defaults and validates a client configuration file.
func ReadClient(path string) (*Client, error) {
	conf := &Client{}
	if err := readYAML(path, conf); err != nil {
		return nil, err
	}
	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
