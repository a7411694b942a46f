package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHeartbeatInterval    = 15 * time.Second
	DefaultLivenessTimeout      = 30 * time.Second
	DefaultMaxMissedAcks        = 3
	DefaultPollInterval         = 5 * time.Minute
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultLogLevel             = "info"
)

func (c *FeedConfig) applyDefaults() {
	if c.Feed.HeartbeatInterval == 0 {
		c.Feed.HeartbeatInterval = Duration(DefaultHeartbeatInterval)
	}
	if c.Feed.LivenessTimeout == 0 {
		c.Feed.LivenessTimeout = Duration(DefaultLivenessTimeout)
	}
	if c.Feed.MaxMissedAcks == 0 {
		c.Feed.MaxMissedAcks = DefaultMaxMissedAcks
	}
	if c.Feed.PollInterval == 0 {
		c.Feed.PollInterval = Duration(DefaultPollInterval)
	}
	if c.Feed.ReconnectDelay == 0 {
		c.Feed.ReconnectDelay = Duration(DefaultReconnectDelay)
	}
	if c.Feed.MaxReconnectAttempts == 0 {
		c.Feed.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
