package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-mudlink/internal/session"
)

type SessionConfig struct {
	// OutboundQueueSize is the high-water mark for a session's outbound
	// queue; a client that falls further behind is evicted.
	OutboundQueueSize int    `json:"outbound_queue_size,omitempty"`
	IdleTimeout       string `json:"idle_timeout,omitempty"`
	StrikeLimit       int    `json:"strike_limit,omitempty"`
}

func (c *SessionConfig) Validate() error {
	el := errors.NewErrorList()

	if c.OutboundQueueSize < 0 {
		el.Add(fmt.Errorf("outbound_queue_size must not be negative"))
	}
	if c.StrikeLimit < 0 {
		el.Add(fmt.Errorf("strike_limit must not be negative"))
	}
	if c.IdleTimeout != "" {
		if _, err := time.ParseDuration(c.IdleTimeout); err != nil {
			el.Add(fmt.Errorf("parsing idle_timeout: %w", err))
		}
	}

	return el.Err()
}

func (c *SessionConfig) BuildSessionManager(dispatcher session.Dispatcher, presence session.Presence, rec session.Recorder) (*session.Manager, error) {
	opts := []session.ManagerOpt{
		session.WithQueueSize(c.OutboundQueueSize),
		session.WithStrikeLimit(c.StrikeLimit),
		session.WithRecorder(rec),
	}
	if c.IdleTimeout != "" {
		d, err := time.ParseDuration(c.IdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing idle_timeout: %w", err)
		}
		opts = append(opts, session.WithIdleTimeout(d))
	}

	return session.NewManager(dispatcher, presence, opts...), nil
}
