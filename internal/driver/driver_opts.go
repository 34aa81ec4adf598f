package driver

import "time"

type DriverOpt func(*Driver)

func WithTickInterval(interval time.Duration) DriverOpt {
	return func(d *Driver) {
		d.interval = interval
	}
}
