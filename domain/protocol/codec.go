package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"tunlink/domain/credentials"
)

// Binary codec for ClientMessage/ServerMessage. The encoding matches
// bincode's legacy defaults: enum variants as u32 little-endian in
// declaration order, string and byte-sequence lengths as u64
// little-endian, fixed-size arrays raw. Peers written against the same
// scheme interoperate byte for byte.

const (
	tagClientAuth uint32 = iota
	tagClientData
	tagClientPing
	tagClientDisconnect
	tagClientKeyExchange
)

const (
	tagServerAuthOk uint32 = iota
	tagServerAuthError
	tagServerData
	tagServerPong
	tagServerError
	tagServerDisconnect
	tagServerKeyExchange
)

// Credentials is a single-variant enum on the wire.
const tagCredentialsPassword uint32 = 0

func MarshalClient(m ClientMessage) ([]byte, error) {
	var w writer
	switch v := m.(type) {
	case ClientAuth:
		w.u32(tagClientAuth)
		w.u32(tagCredentialsPassword)
		w.str(v.Credentials.Username)
		w.str(v.Credentials.Password)
	case ClientData:
		w.u32(tagClientData)
		w.bytes(v.Payload)
	case ClientPing:
		w.u32(tagClientPing)
	case ClientDisconnect:
		w.u32(tagClientDisconnect)
	case ClientKeyExchange:
		w.u32(tagClientKeyExchange)
		w.raw(v.Key[:])
	default:
		return nil, fmt.Errorf("unknown client message %T", m)
	}
	return w.buf, nil
}

func UnmarshalClient(data []byte) (ClientMessage, error) {
	r := reader{buf: data}
	tag, err := r.u32()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagClientAuth:
		credTag, err := r.u32()
		if err != nil {
			return nil, err
		}
		if credTag != tagCredentialsPassword {
			return nil, fmt.Errorf("%w: unknown credential variant %d", ErrDecode, credTag)
		}
		username, err := r.str()
		if err != nil {
			return nil, err
		}
		password, err := r.str()
		if err != nil {
			return nil, err
		}
		return ClientAuth{Credentials: credentials.New(username, password)}, nil
	case tagClientData:
		payload, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return ClientData{Payload: payload}, nil
	case tagClientPing:
		return ClientPing{}, nil
	case tagClientDisconnect:
		return ClientDisconnect{}, nil
	case tagClientKeyExchange:
		var m ClientKeyExchange
		if err := r.raw(m.Key[:]); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown client variant %d", ErrDecode, tag)
	}
}

func MarshalServer(m ServerMessage) ([]byte, error) {
	var w writer
	switch v := m.(type) {
	case ServerAuthOk:
		w.u32(tagServerAuthOk)
	case ServerAuthError:
		w.u32(tagServerAuthError)
		w.str(v.Reason)
	case ServerData:
		w.u32(tagServerData)
		w.bytes(v.Payload)
	case ServerPong:
		w.u32(tagServerPong)
	case ServerError:
		w.u32(tagServerError)
		w.str(v.Message)
	case ServerDisconnect:
		w.u32(tagServerDisconnect)
		w.str(v.Reason)
	case ServerKeyExchange:
		w.u32(tagServerKeyExchange)
		w.raw(v.Key[:])
	default:
		return nil, fmt.Errorf("unknown server message %T", m)
	}
	return w.buf, nil
}

func UnmarshalServer(data []byte) (ServerMessage, error) {
	r := reader{buf: data}
	tag, err := r.u32()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagServerAuthOk:
		return ServerAuthOk{}, nil
	case tagServerAuthError:
		reason, err := r.str()
		if err != nil {
			return nil, err
		}
		return ServerAuthError{Reason: reason}, nil
	case tagServerData:
		payload, err := r.bytes()
		if err != nil {
			return nil, err
		}
		return ServerData{Payload: payload}, nil
	case tagServerPong:
		return ServerPong{}, nil
	case tagServerError:
		message, err := r.str()
		if err != nil {
			return nil, err
		}
		return ServerError{Message: message}, nil
	case tagServerDisconnect:
		reason, err := r.str()
		if err != nil {
			return nil, err
		}
		return ServerDisconnect{Reason: reason}, nil
	case tagServerKeyExchange:
		var m ServerKeyExchange
		if err := r.raw(m.Key[:]); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown server variant %d", ErrDecode, tag)
	}
}

type writer struct {
	buf []byte
}

func (w *writer) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) u64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) bytes(b []byte) {
	w.u64(uint64(len(b)))
	w.raw(b)
}

func (w *writer) str(s string) {
	w.u64(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: truncated u32", ErrDecode)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("%w: truncated u64", ErrDecode)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) raw(dst []byte) error {
	if r.remaining() < len(dst) {
		return fmt.Errorf("%w: truncated array", ErrDecode)
	}
	copy(dst, r.buf[r.off:])
	r.off += len(dst)
	return nil
}

// bytes decodes a length-prefixed sequence. The payload is copied so the
// result does not alias the (reused) receive buffer.
func (r *reader) bytes() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt32 || int(n) > r.remaining() {
		return nil, fmt.Errorf("%w: sequence length %d exceeds input", ErrDecode, n)
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += int(n)
	return out, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
