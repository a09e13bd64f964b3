package realtime

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrOverflow ends a stream whose consumer fell too far behind.
	ErrOverflow = errors.New("realtime: subscriber buffer overflow")

	// ErrClosed ends every stream when the fanout shuts down.
	ErrClosed = errors.New("realtime: feed closed")
)

// defaultBuffer is the number of undelivered events a stream may hold.
const defaultBuffer = 256

// Fanout is the process-local Feed. The persistence gateway publishes
// into it after each commit and it delivers to every matching stream.
// A stream that cannot keep up is ended with ErrOverflow rather than
// blocking the publisher; the registry then reopens it and listeners
// resync.
type Fanout struct {
	mu      sync.RWMutex
	streams map[*fanoutStream]struct{}
	buffer  int
	closed  bool
}

// NewFanout creates an empty fanout.
func NewFanout() *Fanout {
	return &Fanout{
		streams: make(map[*fanoutStream]struct{}),
		buffer:  defaultBuffer,
	}
}

// Open registers a stream for scope. The context is not retained.
func (f *Fanout) Open(_ context.Context, scope Scope, onEvent func(Event)) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}

	s := &fanoutStream{
		owner:   f,
		scope:   scope,
		events:  make(chan Event, f.buffer),
		done:    make(chan struct{}),
		onEvent: onEvent,
	}
	f.streams[s] = struct{}{}
	go s.run()

	return s, nil
}

// Publish delivers ev to every matching stream without blocking.
func (f *Fanout) Publish(ev Event) {
	var overflowed []*fanoutStream

	f.mu.RLock()
	for s := range f.streams {
		if !s.scope.Matches(ev) {
			continue
		}
		select {
		case s.events <- ev:
		default:
			overflowed = append(overflowed, s)
		}
	}
	f.mu.RUnlock()

	for _, s := range overflowed {
		s.end(ErrOverflow)
	}
}

// Close ends all streams with ErrClosed and rejects further opens.
func (f *Fanout) Close() {
	f.mu.Lock()
	f.closed = true
	streams := make([]*fanoutStream, 0, len(f.streams))
	for s := range f.streams {
		streams = append(streams, s)
	}
	f.mu.Unlock()

	for _, s := range streams {
		s.end(ErrClosed)
	}
}

// StreamCount returns the number of open streams.
func (f *Fanout) StreamCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.streams)
}

func (f *Fanout) remove(s *fanoutStream) {
	f.mu.Lock()
	delete(f.streams, s)
	f.mu.Unlock()
}

type fanoutStream struct {
	owner   *Fanout
	scope   Scope
	events  chan Event
	done    chan struct{}
	onEvent func(Event)

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *fanoutStream) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.onEvent(ev)
		}
	}
}

func (s *fanoutStream) end(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.owner.remove(s)
		close(s.done)
	})
}

func (s *fanoutStream) Done() <-chan struct{} { return s.done }

func (s *fanoutStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fanoutStream) Close() { s.end(nil) }
