package api

import (
	"errors"
	"fmt"
)

// Kind classifies a client error.
type Kind int

const (
	// KindChunkDecode means the body was cut while it was being read. It is
	// the only transient kind.
	KindChunkDecode Kind = iota + 1
	// KindHTTP means the server answered with a failure status, or never
	// answered at all (Status 0).
	KindHTTP
	// KindChannel means the stream ended without a terminal outcome.
	KindChannel
	// KindInvalidParameters means the caller passed something unusable.
	KindInvalidParameters
)

func (k Kind) String() string {
	switch k {
	case KindChunkDecode:
		return "chunk decode"
	case KindHTTP:
		return "http"
	case KindChannel:
		return "channel"
	case KindInvalidParameters:
		return "invalid parameters"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by every Client operation that fails for a reason other
// than context cancellation.
type Error struct {
	Kind Kind
	// Status and Body are set for KindHTTP.
	Status int
	Body   string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindHTTP:
		if e.Status == 0 {
			msg = "request failed"
		} else {
			msg = fmt.Sprintf("remote service returned %d", e.Status)
			if e.Body != "" {
				msg += ": " + e.Body
			}
		}
	case KindChunkDecode:
		msg = "failed to decode response chunk"
	case KindChannel:
		msg = "stream ended unexpectedly"
	case KindInvalidParameters:
		msg = "invalid parameters"
	default:
		msg = e.Kind.String()
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err may go away if the request is repeated.
func IsTransient(err error) bool {
	return IsKind(err, KindChunkDecode)
}

// IsKind reports whether err carries an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

// ChunkDecodeError wraps a fault that happened while reading a response body.
func ChunkDecodeError(err error) *Error {
	return &Error{Kind: KindChunkDecode, Err: err}
}

// HTTPError reports a failed response. Use status 0 when the server never
// answered.
func HTTPError(status int, body string, err error) *Error {
	return &Error{Kind: KindHTTP, Status: status, Body: body, Err: err}
}

// ChannelError reports broken internal signalling.
func ChannelError(msg string) *Error {
	return &Error{Kind: KindChannel, Msg: msg}
}

// InvalidParameters reports caller misuse.
func InvalidParameters(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidParameters, Msg: fmt.Sprintf(format, args...)}
}
