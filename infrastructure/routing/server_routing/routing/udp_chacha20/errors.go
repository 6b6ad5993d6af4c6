package udp_chacha20

import "errors"

var errOversizedFrame = errors.New("frame exceeds max packet length")
