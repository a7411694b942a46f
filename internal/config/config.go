package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pushline/pushline/internal/supervisor"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "15s" or "5m". yaml.v3 has no native duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// FeedConfig is the root configuration for a feedwatch instance.
type FeedConfig struct {
	Feed FeedSettings `yaml:"feed"`
	Log  LogConfig    `yaml:"log"`
}

// FeedSettings holds the connection supervisor settings.
type FeedSettings struct {
	Endpoint             string   `yaml:"endpoint"`
	Token                string   `yaml:"token"` // Usually ${FEED_TOKEN}
	Streaming            bool     `yaml:"streaming"`
	HeartbeatInterval    Duration `yaml:"heartbeat_interval"`
	LivenessTimeout      Duration `yaml:"liveness_timeout"`
	MaxMissedAcks        int      `yaml:"max_missed_acks"`
	PollInterval         Duration `yaml:"poll_interval"`
	ReconnectDelay       Duration `yaml:"reconnect_delay"`
	AutoReconnect        *bool    `yaml:"auto_reconnect"` // Defaults to true when omitted
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Supervisor maps the file configuration onto a supervisor.Config.
func (c *FeedConfig) Supervisor() supervisor.Config {
	return supervisor.Config{
		Endpoint:             c.Feed.Endpoint,
		Token:                c.Feed.Token,
		Streaming:            c.Feed.Streaming,
		HeartbeatInterval:    time.Duration(c.Feed.HeartbeatInterval),
		LivenessTimeout:      time.Duration(c.Feed.LivenessTimeout),
		MaxMissedAcks:        c.Feed.MaxMissedAcks,
		PollInterval:         time.Duration(c.Feed.PollInterval),
		ReconnectDelay:       time.Duration(c.Feed.ReconnectDelay),
		AutoReconnect:        c.Feed.AutoReconnect == nil || *c.Feed.AutoReconnect,
		MaxReconnectAttempts: c.Feed.MaxReconnectAttempts,
	}
}
