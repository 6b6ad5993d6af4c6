package protocol

import "errors"

// ErrDecode marks payloads that decrypted correctly but do not carry a
// recognizable message.
var ErrDecode = errors.New("protocol: decode failed")
