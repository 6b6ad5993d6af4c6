package credentials

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Credentials is a username/password pair. The zero value is not a valid
// credential; use New or Parse.
type Credentials struct {
	Username string
	Password string
}

func New(username, password string) Credentials {
	return Credentials{Username: username, Password: password}
}

// Parse splits a "user:pass" string on the first colon; everything after
// it, colons included, is the password.
func Parse(s string) (Credentials, error) {
	username, password, found := strings.Cut(s, ":")
	if !found {
		return Credentials{}, fmt.Errorf("invalid auth string: missing colon")
	}
	return Credentials{Username: username, Password: password}, nil
}

// Equal compares both components in constant time.
func (c Credentials) Equal(other Credentials) bool {
	userOk := subtle.ConstantTimeCompare([]byte(c.Username), []byte(other.Username))
	passOk := subtle.ConstantTimeCompare([]byte(c.Password), []byte(other.Password))
	return userOk&passOk == 1
}

// Contains reports whether set holds a credential equal to c.
func Contains(set []Credentials, c Credentials) bool {
	found := false
	for _, accepted := range set {
		if accepted.Equal(c) {
			found = true
		}
	}
	return found
}

// UnmarshalYAML decodes the configuration form of a credential:
//
//	type: "password"
//	username: "user"
//	password: "pass"
//
// The type discriminator is required; only "password" is known.
func (c *Credentials) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Type     string `yaml:"type"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Type != "password" {
		return fmt.Errorf("unsupported credential type %q", raw.Type)
	}
	c.Username = raw.Username
	c.Password = raw.Password
	return nil
}
