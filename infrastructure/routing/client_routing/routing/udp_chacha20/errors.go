package udp_chacha20

import "errors"

// ErrSessionClosed reports that the server ended the session with a
// Disconnect; the client treats it as a normal termination.
var ErrSessionClosed = errors.New("session closed by server")
