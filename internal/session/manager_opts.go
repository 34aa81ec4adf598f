package session

import "time"

type ManagerOpt func(*Manager)

// WithQueueSize sets the outbound queue capacity for new sessions
func WithQueueSize(n int) ManagerOpt {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithIdleTimeout sets how long a session may go without input before the
// sweep closes it. Zero disables the sweep.
func WithIdleTimeout(d time.Duration) ManagerOpt {
	return func(m *Manager) {
		m.idleTimeout = d
	}
}

// WithStrikeLimit sets how many malformed frames a session may send
func WithStrikeLimit(n int) ManagerOpt {
	return func(m *Manager) {
		if n > 0 {
			m.strikeLimit = n
		}
	}
}

// WithRecorder sets the metrics recorder for session events
func WithRecorder(r Recorder) ManagerOpt {
	return func(m *Manager) {
		m.rec = r
	}
}
