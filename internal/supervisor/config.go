package supervisor

import (
	"errors"
	"fmt"
	"time"
)

// Config configures a Supervisor. All fields are fixed at construction.
type Config struct {
	Endpoint string // Feed endpoint (ws:// or wss://)
	Token    string // Auth token, carried in the connection URL

	// Streaming disables the polling driver: the remote pushes data
	// continuously, so no periodic pull is needed.
	Streaming bool

	HeartbeatInterval time.Duration // Interval between liveness probes
	LivenessTimeout   time.Duration // Max age of the last probe ack before a beat counts as missed
	MaxMissedAcks     int           // Consecutive missed beats before forced termination

	// PollInterval is the interval between buffered-data pull requests.
	// Only meaningful when Streaming is false.
	PollInterval time.Duration

	ReconnectDelay       time.Duration // Fixed wait before each reconnect attempt
	AutoReconnect        bool          // Reconnect after unexpected disconnects
	MaxReconnectAttempts int           // Lifetime reconnect budget, never replenished
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    15 * time.Second,
		LivenessTimeout:      30 * time.Second,
		MaxMissedAcks:        3,
		PollInterval:         5 * time.Minute,
		ReconnectDelay:       5 * time.Second,
		AutoReconnect:        true,
		MaxReconnectAttempts: 10,
	}
}

// pollingActive reports whether the polling driver will run.
func (c Config) pollingActive() bool {
	return !c.Streaming && c.PollInterval > 0
}

// Validate checks that all required fields are set and the timing
// budget is consistent.
//
// When polling is active, a full detect-and-reconnect cycle must fit
// inside one poll interval: heartbeat interval + liveness timeout +
// reconnect delay must not exceed the poll interval. Equality is
// allowed.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval must be > 0")
	}
	if c.LivenessTimeout <= 0 {
		return errors.New("liveness_timeout must be > 0")
	}
	if c.MaxMissedAcks < 1 {
		return errors.New("max_missed_acks must be >= 1")
	}
	if c.ReconnectDelay < 0 {
		return errors.New("reconnect_delay must be >= 0")
	}
	if c.MaxReconnectAttempts < 0 {
		return errors.New("max_reconnect_attempts must be >= 0")
	}

	if c.pollingActive() {
		cycle := c.HeartbeatInterval + c.LivenessTimeout + c.ReconnectDelay
		if cycle > c.PollInterval {
			return fmt.Errorf(
				"heartbeat_interval + liveness_timeout + reconnect_delay (%s) exceeds poll_interval (%s)",
				cycle, c.PollInterval,
			)
		}
	}

	return nil
}
