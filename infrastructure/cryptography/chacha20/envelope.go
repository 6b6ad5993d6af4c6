package chacha20

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"tunlink/application"
)

const (
	NonceSize = chacha20poly1305.NonceSize
	Overhead  = chacha20poly1305.Overhead
	// EnvelopeOverhead is the fixed per-datagram cost: nonce plus tag.
	EnvelopeOverhead = NonceSize + Overhead
)

// Session encrypts and decrypts envelopes under a fixed key. The wire
// form is nonce(12) ‖ ciphertext ‖ tag(16) with no associated data. The
// nonce is drawn fresh and uniformly per message, never from a counter.
type Session struct {
	aead cipher.AEAD
}

var _ application.CryptographyService = (*Session)(nil)

func NewSession(key Key) (*Session, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to build AEAD: %w", err)
	}
	return &Session{aead: aead}, nil
}

func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+Overhead)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

func (s *Session) Decrypt(envelope []byte) ([]byte, error) {
	if len(envelope) < EnvelopeOverhead {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(envelope))
	}
	plaintext, err := s.aead.Open(nil, envelope[:NonceSize], envelope[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Seal is a one-shot Encrypt for callers without a long-lived Session,
// such as the handshake path under the bootstrap key.
func Seal(key Key, plaintext []byte) ([]byte, error) {
	s, err := NewSession(key)
	if err != nil {
		return nil, err
	}
	return s.Encrypt(plaintext)
}

// Open is the one-shot counterpart of Seal.
func Open(key Key, envelope []byte) ([]byte, error) {
	s, err := NewSession(key)
	if err != nil {
		return nil, err
	}
	return s.Decrypt(envelope)
}
