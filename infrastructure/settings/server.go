package settings

import (
	"fmt"
	"net/netip"
	"time"

	"tunlink/domain/credentials"
)

// Server holds the server endpoint configuration.
type Server struct {
	ListenAddress Addr   `yaml:"listen_address"`
	ListenPort    uint16 `yaml:"listen_port"`

	MaxClients        int `yaml:"max_clients"`
	ClientTimeoutSecs int `yaml:"client_timeout_secs"`

	ClientCredentials []credentials.Credentials `yaml:"client_credentials"`

	Tun     Tun     `yaml:"tun"`
	Metrics Metrics `yaml:"metrics"`
}

func (s *Server) ClientTimeout() time.Duration {
	return time.Duration(s.ClientTimeoutSecs) * time.Second
}

func (s *Server) ListenAddrPort() netip.AddrPort {
	return netip.AddrPortFrom(s.ListenAddress.Addr, s.ListenPort)
}

func (s *Server) applyDefaults() {
	if !s.ListenAddress.IsValid() {
		s.ListenAddress = AddrOf(netip.IPv4Unspecified())
	}
	if s.MaxClients == 0 {
		s.MaxClients = DefaultMaxClients
	}
	if s.ClientTimeoutSecs == 0 {
		s.ClientTimeoutSecs = DefaultClientTimeoutSecs
	}
	s.Tun.applyDefaults()
}

func (s *Server) validate() error {
	if s.ListenPort == 0 {
		return fmt.Errorf("listen_port is required")
	}
	if s.MaxClients < 0 {
		return fmt.Errorf("max_clients must be positive")
	}
	return nil
}

// ReadServer loads, defaults and validates a server configuration file.
func ReadServer(path string) (*Server, error) {
	conf := &Server{}
	if err := readYAML(path, conf); err != nil {
		return nil, err
	}
	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
