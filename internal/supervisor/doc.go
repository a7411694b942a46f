// Package supervisor implements the connection supervisor: one
// persistent WebSocket feed connection kept alive by heartbeat probing,
// force-terminated when the remote stops acknowledging, and re-dialed
// automatically within a bounded lifetime attempt budget.
//
// The supervisor owns one connection attempt at a time. Each attempt
// runs a single event-loop goroutine that handles transport events and
// timer ticks, so attempt state (timers, missed-ack counter, last-ack
// timestamp) is never touched concurrently and all caller hooks fire
// one at a time.
package supervisor
