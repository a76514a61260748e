package watch

import (
	"fmt"
	"strings"
	"time"

	"bruhbug-service/internal/entity"
)

// Mode selects which detection channels a watcher races. The deadline is always armed.
type Mode string

const (
	ModePush     Mode = "push"
	ModePoll     Mode = "poll"
	ModePushPoll Mode = "push+poll"
)

// ParseMode accepts push, poll or push+poll (case-insensitive, "poll+push" also works).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "push":
		return ModePush, nil
	case "poll":
		return ModePoll, nil
	case "push+poll", "poll+push", "":
		return ModePushPoll, nil
	}
	return "", fmt.Errorf("%w: unknown watch mode %q", entity.ErrValidation, s)
}

func (m Mode) channels() (push, poll bool) {
	switch m {
	case ModePush:
		return true, false
	case ModePoll:
		return false, true
	default:
		return true, true
	}
}

type Config struct {
	Push bool
	Poll bool

	// Deadline is measured from arming.
	Deadline time.Duration

	PollGrace    time.Duration
	PollInterval time.Duration
	PollAttempts int
	FetchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Push:         true,
		Poll:         true,
		Deadline:     10 * time.Second,
		PollGrace:    2 * time.Second,
		PollInterval: time.Second,
		PollAttempts: 8,
		FetchTimeout: 3 * time.Second,
	}
}

// WithMode returns a copy of c with the channels of m enabled.
func (c Config) WithMode(m Mode) Config {
	c.Push, c.Poll = m.channels()
	return c
}

func (c Config) sanitize() Config {
	def := DefaultConfig()
	if c.Deadline <= 0 {
		c.Deadline = def.Deadline
	}
	if c.PollGrace < 0 {
		c.PollGrace = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = def.PollAttempts
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	return c
}
