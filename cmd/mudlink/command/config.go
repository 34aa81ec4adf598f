package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
)

type Config struct {
	TickInterval string           `json:"tick_interval,omitempty"`
	Listeners    []ListenerConfig `json:"listeners"`
	Auth         AuthConfig       `json:"auth"`
	Nats         NatsConfig       `json:"nats"`
	Storage      StorageConfig    `json:"storage"`
	Session      SessionConfig    `json:"session"`
	World        WorldConfig      `json:"world"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.TickInterval != "" {
		d, err := time.ParseDuration(c.TickInterval)
		if err != nil {
			el.Add(fmt.Errorf("parsing tick_interval: %w", err))
		} else if d < time.Second {
			el.Add(fmt.Errorf("tick_interval must be at least 1 second"))
		}
	}

	if len(c.Listeners) == 0 {
		el.Add(fmt.Errorf("at least one listener is required"))
	}
	for i, l := range c.Listeners {
		if err := l.Validate(); err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
	}

	el.Add(c.Auth.Validate())
	el.Add(c.Nats.Validate())
	el.Add(c.Storage.Validate())
	el.Add(c.Session.Validate())
	el.Add(c.World.Validate())

	return el.Err()
}
