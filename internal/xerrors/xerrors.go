// Package xerrors defines the streaming-engine error taxonomy from the
// normalization contract: transient wire/transport failures the stream
// state machine converts into Disconnect events, and the handful of
// synchronous errors that are allowed to surface to a caller directly.
package xerrors

import "errors"

// Sentinels identifying the kind of a wrapped error. Use errors.Is against
// these, not type assertions. Errors that carry a kind wrap its sentinel
// with fmt.Errorf("...: %w", ...): internal/httpx wraps ErrConnection and
// ErrGatewayTimeout, internal/pair wraps ErrInvalidPair. Other errors in
// this module wrap none of them.
var (
	// ErrConnection is a TCP/TLS/WS failure during dial or send.
	ErrConnection = errors.New("connection error")
	// ErrDeserialize is a JSON or variant decoding failure on an inbound frame.
	ErrDeserialize = errors.New("deserialize error")
	// ErrStreamRx is a websocket read failure on an established connection.
	ErrStreamRx = errors.New("stream rx error")
	// ErrStreamTx is a websocket write failure on an established connection.
	ErrStreamTx = errors.New("stream tx error")
	// ErrStreamTerminated means the remote closed the stream or sent End.
	ErrStreamTerminated = errors.New("stream terminated")
	// ErrGatewayTimeout is a REST 504, retried once by the enumeration path.
	ErrGatewayTimeout = errors.New("gateway timeout")
	// ErrInvalidPair means a pair string failed exchange-specific validation.
	ErrInvalidPair = errors.New("invalid pair")
)

// Kind classifies a Disconnect event's cause for consumers that want to
// branch on it without string matching raw_message.
type Kind int

const (
	KindConnection Kind = iota
	KindDeserialize
	KindStreamRx
	KindStreamTx
	KindStreamTerminated
	KindIdleTimeout
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection_error"
	case KindDeserialize:
		return "deserialize_error"
	case KindStreamRx:
		return "stream_rx_error"
	case KindStreamTx:
		return "stream_tx_error"
	case KindStreamTerminated:
		return "stream_terminated"
	case KindIdleTimeout:
		return "idle_timeout"
	default:
		return "unknown"
	}
}
