package driver

import (
	"context"
	"time"
)

const (
	DefaultTickInterval = time.Second * 2
)

// Ticker is a component that wants periodic work on the shared cadence:
// idle sweeps, plugin ticks, gauge refreshes.
type Ticker interface {
	Tick(context.Context) error
}

// Driver runs every registered ticker on one interval. A ticker error stops
// the driver and takes the process down with it.
type Driver struct {
	interval time.Duration
	tickers  []Ticker
}

func NewDriver(tickers []Ticker, opts ...DriverOpt) *Driver {
	d := &Driver{
		interval: DefaultTickInterval,
		tickers:  tickers,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Driver) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := d.Tick(ctx)
			if err != nil {
				return err
			}
		}
	}
}

func (d *Driver) Tick(ctx context.Context) error {
	for _, t := range d.tickers {
		if err := t.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}
