// Package transport owns the underlying WebSocket connection.
//
// A Conn wraps exactly one dial attempt. It ferries raw frames in and
// out, surfaces lifecycle events (message, probe-ack, error, closed) on
// a single ordered channel, and guarantees exactly one closed event per
// attempt regardless of how the connection ends.
package transport
