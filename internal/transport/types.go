package transport

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotOpen       = errors.New("connection not open")
	ErrAlreadyDialed = errors.New("connection already dialed")
)

// EventKind identifies a connection lifecycle event.
type EventKind int

const (
	// KindMessage is an inbound application frame.
	KindMessage EventKind = iota

	// KindProbeAck is the remote's reply to a liveness probe.
	KindProbeAck

	// KindError is a transport failure. It does not by itself mean the
	// connection is closed; a KindClosed event always follows separately.
	KindError

	// KindClosed is the final event for an attempt. The event channel is
	// closed immediately after it is delivered.
	KindClosed
)

// Event is a single connection lifecycle event. Events for one Conn are
// delivered in order on one channel, so consumers never observe a
// message after the closed event.
type Event struct {
	Kind EventKind

	// Raw is the frame payload for KindMessage, or the echoed probe
	// application data for KindProbeAck.
	Raw []byte

	// Decoded is the best-effort JSON decoding of Raw. Nil when the
	// payload is not valid JSON; the raw bytes are still delivered.
	Decoded any

	// Err is set for KindError.
	Err error

	// Code and Reason are set for KindClosed.
	Code   int
	Reason string
}

// Config configures a single WebSocket connection.
type Config struct {
	URL              string        // Connection endpoint (ws:// or wss://)
	Token            string        // Auth token, sent as the "token" query parameter
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for outbound frames
	BufferSize       int           // Event channel buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}
