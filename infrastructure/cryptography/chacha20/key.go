package chacha20

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const KeySize = chacha20poly1305.KeySize

// Key is a 32-byte ChaCha20-Poly1305 key.
type Key [KeySize]byte

// Bootstrap returns the all-zero key used exclusively for the two
// handshake messages. It provides integrity framing, not secrecy.
func Bootstrap() Key {
	return Key{}
}

// NewRandomKey draws 32 bytes from a cryptographically strong RNG.
func NewRandomKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return k, nil
}

// DeriveSessionKey combines the client and server handshake randoms into
// the session key. XOR keeps the derivation symmetric: both endpoints
// compute the same key regardless of argument order.
func DeriveSessionKey(clientRandom, serverRandom Key) Key {
	var k Key
	for i := range k {
		k[i] = clientRandom[i] ^ serverRandom[i]
	}
	return k
}
