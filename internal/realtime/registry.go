package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
)

// Backoff bounds for reopening a stream that ended with an error.
const (
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	recentEventWindow     = 256
)

// Option configures a Registry.
type Option func(*Registry)

// WithBackoff sets the initial and maximum resubscribe delay.
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(r *Registry) {
		r.initialBackoff = initial
		r.maxBackoff = maxDelay
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// Registry keeps one backend stream per scope no matter how many views
// subscribe to it, delivers each event at most once per listener, and
// reopens streams that end with an error using exponential backoff.
type Registry struct {
	feed           Feed
	log            *zap.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu     sync.Mutex
	scopes map[string]*scopeFeed
	nextID int
	closed bool
}

// NewRegistry creates a registry over feed.
func NewRegistry(feed Feed, opts ...Option) *Registry {
	r := &Registry{
		feed:           feed,
		log:            zap.NewNop(),
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		scopes:         make(map[string]*scopeFeed),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// scopeFeed is the shared state of one scope.
type scopeFeed struct {
	scope     Scope
	ctx       context.Context
	cancel    context.CancelFunc
	listeners map[int]func(Event)

	mu     sync.Mutex
	recent map[string]struct{}
	order  []string
}

// Subscribe adds handler as a listener of scope and returns a function
// that removes it. The first listener of a scope opens the backend
// stream; if that fails the error is returned and nothing is registered.
// The returned unsubscribe is idempotent.
func (r *Registry) Subscribe(ctx context.Context, scope Scope, handler func(Event)) (func(), error) {
	key := scope.Key()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, apperr.Transient("subscribing "+key, ErrClosed)
	}

	sf, ok := r.scopes[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.Background())
		sf = &scopeFeed{
			scope:     scope,
			ctx:       fctx,
			cancel:    cancel,
			listeners: make(map[int]func(Event)),
			recent:    make(map[string]struct{}, recentEventWindow),
		}
		stream, err := r.feed.Open(ctx, scope, func(ev Event) { r.dispatch(sf, ev) })
		if err != nil {
			r.mu.Unlock()
			cancel()
			return nil, apperr.Transient("subscribing "+key, err)
		}
		r.scopes[key] = sf
		go r.watch(sf, stream)
		r.log.Debug("feed opened", zap.String("scope", key))
	}

	r.nextID++
	id := r.nextID
	sf.listeners[id] = handler
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(key, id) })
	}, nil
}

// ActiveScopes returns the number of scopes with an open feed.
func (r *Registry) ActiveScopes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}

// Close tears down every feed. Later subscriptions fail.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	scopes := r.scopes
	r.scopes = make(map[string]*scopeFeed)
	r.mu.Unlock()

	for _, sf := range scopes {
		sf.cancel()
	}
}

func (r *Registry) unsubscribe(key string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sf, ok := r.scopes[key]
	if !ok {
		return
	}
	delete(sf.listeners, id)
	if len(sf.listeners) == 0 {
		delete(r.scopes, key)
		sf.cancel()
		r.log.Debug("feed closed", zap.String("scope", key))
	}
}

// dispatch delivers ev to the current listeners of sf, skipping events
// already seen on this scope.
func (r *Registry) dispatch(sf *scopeFeed, ev Event) {
	if sf.ctx.Err() != nil {
		return
	}
	if ev.Op != OpResync && !sf.markSeen(ev.Key()) {
		return
	}

	r.mu.Lock()
	handlers := make([]func(Event), 0, len(sf.listeners))
	for _, h := range sf.listeners {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// markSeen records key and reports whether it was new. Only the most
// recent keys are remembered.
func (sf *scopeFeed) markSeen(key string) bool {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if _, dup := sf.recent[key]; dup {
		return false
	}
	sf.recent[key] = struct{}{}
	sf.order = append(sf.order, key)
	if len(sf.order) > recentEventWindow {
		delete(sf.recent, sf.order[0])
		sf.order = sf.order[1:]
	}
	return true
}

// watch waits for the stream of sf to end and reopens it with backoff
// until the scope is released.
func (r *Registry) watch(sf *scopeFeed, stream Stream) {
	delay := r.initialBackoff
	key := sf.scope.Key()

	for {
		select {
		case <-sf.ctx.Done():
			stream.Close()
			return
		case <-stream.Done():
		}

		r.log.Warn("feed disconnected",
			zap.String("scope", key),
			zap.Error(stream.Err()),
		)

		for {
			select {
			case <-sf.ctx.Done():
				return
			case <-time.After(delay):
			}

			next, err := r.feed.Open(sf.ctx, sf.scope, func(ev Event) { r.dispatch(sf, ev) })
			if err == nil {
				stream = next
				delay = r.initialBackoff
				r.log.Info("feed reconnected", zap.String("scope", key))
				r.dispatch(sf, Event{Table: sf.scope.Table, Op: OpResync, At: time.Now().UTC()})
				break
			}

			r.log.Warn("feed reconnect failed",
				zap.String("scope", key),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
			delay *= 2
			if delay > r.maxBackoff {
				delay = r.maxBackoff
			}
		}
	}
}
