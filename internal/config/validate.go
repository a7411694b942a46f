package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are
// valid, including the supervisor's timing invariant.
func (c *FeedConfig) Validate() error {
	if c.Feed.Endpoint == "" {
		return errors.New("feed.endpoint is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}

	if err := c.Supervisor().Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	return nil
}
