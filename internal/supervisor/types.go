package supervisor

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotOpen            = errors.New("connection not open")
	ErrSuperseded         = errors.New("connect attempt superseded")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// Hooks are optional caller callbacks. Every hook is invoked from the
// supervisor's event loop (or from the reconnect scheduler strictly
// between attempts), never concurrently with another hook. Hooks must
// not block; a slow hook stalls the connection's event handling.
type Hooks struct {
	// OnOpen fires once per successful connection attempt, before any
	// message is delivered.
	OnOpen func()

	// OnMessage fires for every inbound frame. Decoded is the
	// best-effort JSON decoding of the payload and is nil when the
	// payload is not valid JSON; raw always carries the original bytes.
	OnMessage func(decoded any, raw []byte)

	// OnError fires for transport failures. Errors do not by themselves
	// close the connection; closure arrives separately via OnClose.
	OnError func(err error)

	// OnClose fires exactly once per connection attempt, for graceful
	// and unexpected closure alike.
	OnClose func(code int, reason string)

	// OnProbeAck fires when the remote acknowledges a liveness probe.
	OnProbeAck func()

	// OnDown fires once when the supervisor gives up for good: the
	// reconnect budget is exhausted and no further attempts will be
	// made.
	OnDown func(err error)
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	Open         bool      // An attempt is currently open
	AttemptsLeft int       // Remaining lifetime reconnect budget
	LastProbeAck time.Time // Last ack on the current attempt (open time until the first ack)
	MissedAcks   int       // Consecutive missed beats on the current attempt
}
