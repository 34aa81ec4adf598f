package groups

import (
	"sync"
)

// Broker is the pub/sub fabric carrying group traffic. Handlers are invoked
// for every message published to a subscribed subject, including messages
// published by this process.
type Broker interface {
	Subscribe(subject string, handler func(data []byte)) (func(), error)
	Publish(subject string, data []byte) error
}

// Loopback is an in-process Broker. It delivers synchronously on the
// publisher's goroutine and exists for tests and single-process tooling.
type Loopback struct {
	mu   sync.RWMutex
	subs map[string]map[int]func(data []byte)
	next int
}

func NewLoopback() *Loopback {
	return &Loopback{
		subs: map[string]map[int]func(data []byte){},
	}
}

func (l *Loopback) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.next
	l.next++

	if l.subs[subject] == nil {
		l.subs[subject] = map[int]func(data []byte){}
	}
	l.subs[subject][id] = handler

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs[subject], id)
		if len(l.subs[subject]) == 0 {
			delete(l.subs, subject)
		}
	}, nil
}

func (l *Loopback) Publish(subject string, data []byte) error {
	// Snapshot handlers so one can subscribe or unsubscribe mid-delivery
	l.mu.RLock()
	handlers := make([]func(data []byte), 0, len(l.subs[subject]))
	for _, h := range l.subs[subject] {
		handlers = append(handlers, h)
	}
	l.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}
