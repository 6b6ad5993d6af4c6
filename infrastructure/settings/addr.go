package settings

import (
	"fmt"
	"net/netip"

	"gopkg.in/yaml.v3"
)

// Addr is a netip.Addr that knows how to decode itself from a YAML
// scalar such as "127.0.0.1".
type Addr struct {
	netip.Addr
}

func AddrOf(a netip.Addr) Addr { return Addr{Addr: a} }

func (a *Addr) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := netip.ParseAddr(s)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", s, err)
	}
	a.Addr = parsed
	return nil
}

func (a Addr) MarshalYAML() (any, error) {
	return a.String(), nil
}
