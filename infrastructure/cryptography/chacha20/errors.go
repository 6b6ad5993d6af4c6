package chacha20

import "errors"

var (
	// ErrMalformed marks envelopes too short to carry a nonce and a tag.
	ErrMalformed = errors.New("malformed envelope")
	// ErrAuthFailed marks envelopes whose tag does not verify under the
	// selected key.
	ErrAuthFailed = errors.New("envelope authentication failed")
)
