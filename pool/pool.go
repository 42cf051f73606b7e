// Package pool multiplexes many subscribers' queries into one backend fetch
// per poll cycle and fans the results back out.
package pool

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/torq/filter"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 5 * time.Second

var (
	ErrUnknownSubscriber = errors.New("unknown subscriber")
	ErrAlreadyRunning    = errors.New("pool is already running")
	ErrClosed            = errors.New("subscription is closed")
)

// Result is the outcome of a backend fetch.
type Result struct {
	Success  bool
	Items    []filter.Item
	Messages []string
}

// Fetcher retrieves the items matched by f carrying at least keys. A nil
// Matcher means every item. A returned error is fatal to the polling loop.
type Fetcher interface {
	Fetch(ctx context.Context, f filter.Matcher, keys filter.KeySet) (*Result, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, f filter.Matcher, keys filter.KeySet) (*Result, error)

func (fn FetcherFunc) Fetch(ctx context.Context, f filter.Matcher, keys filter.KeySet) (*Result, error) {
	return fn(ctx, f, keys)
}

// Callback receives the items of one fetch that match its subscriber.
type Callback func(items []filter.Item)

type subscriber struct {
	id       string
	callback Callback
	keys     filter.KeySet
	filter   filter.Matcher
	handle   uint64
}

// Pool periodically fetches the union of its subscribers' queries.
type Pool struct {
	fetcher  Fetcher
	logger   zerolog.Logger
	baseKeys filter.KeySet

	mu          sync.Mutex
	subscribers map[string]*subscriber
	interval    time.Duration
	handles     uint64
	generation  uint64
	fetching    bool
	lastCycle   time.Time
	running     bool
	err         error
	cancel      context.CancelFunc
	done        chan struct{}

	wake    chan struct{}
	restart chan struct{}
	reset   chan struct{}
}

// Option configures a Pool.
type Option func(*Pool)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithBaseKeys replaces the keys requested on every fetch, {"id"} by default.
func WithBaseKeys(keys ...string) Option {
	return func(p *Pool) {
		p.baseKeys = filter.Keys(keys...)
	}
}

// New creates a stopped Pool fetching through fetcher.
func New(fetcher Fetcher, opts ...Option) *Pool {
	p := &Pool{
		fetcher:     fetcher,
		logger:      zerolog.Nop(),
		baseKeys:    filter.Keys("id"),
		subscribers: make(map[string]*subscriber),
		interval:    DefaultInterval,
		wake:        make(chan struct{}, 1),
		restart:     make(chan struct{}, 1),
		reset:       make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Register adds or replaces the subscriber id. A nil Matcher subscribes to
// every item. The returned Subscription owns the registration.
func (p *Pool) Register(id string, cb Callback, keys filter.KeySet, f filter.Matcher) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handles++
	p.subscribers[id] = &subscriber{
		id:       id,
		callback: cb,
		keys:     keys.Clone(),
		filter:   f,
		handle:   p.handles,
	}
	p.changedLocked()

	p.logger.Debug().Str("subscriber", id).Strs("keys", keys.Sorted()).Str("filter", matcherString(f)).Msg("Registered subscriber")

	return &Subscription{pool: p, id: id, handle: p.handles}
}

// Remove drops the subscriber id.
func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.subscribers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscriber, id)
	}
	delete(p.subscribers, id)
	p.changedLocked()

	p.logger.Debug().Str("subscriber", id).Msg("Removed subscriber")
	return nil
}

// RequestedKeys returns the keys registered by subscriber id.
func (p *Pool) RequestedKeys(id string) (filter.KeySet, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, ok := p.subscribers[id]
	if !ok {
		return nil, false
	}
	return sub.keys.Clone(), true
}

// Subscribers returns the registered subscriber ids in order.
func (p *Pool) Subscribers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Sorted(maps.Keys(p.subscribers))
}

// Poll requests a fetch now. The next automatic poll follows one interval
// after it. A Poll during a fetch is served by that fetch.
func (p *Pool) Poll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fetching {
		return
	}
	signal(p.wake)
}

// Interval returns the poll interval.
func (p *Pool) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.interval
}

// SetInterval changes the poll interval. The pending wait is rescheduled
// relative to the end of the last cycle.
func (p *Pool) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.interval = d
	signal(p.reset)
}

// Running reports whether the polling loop is active.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.running
}

// Start launches the polling loop. The first fetch happens immediately.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}

	if p.cancel != nil {
		// the previous loop died on a fetch error
		p.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	p.running = true
	p.err = nil
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)

	p.logger.Debug().Dur("interval", p.interval).Msg("Started polling")
	return nil
}

// Stop halts the polling loop and waits for it to exit. It returns the error
// that stopped the loop, if any.
func (p *Pool) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.running = false
	err := p.err
	p.err = nil
	return err
}

// Done returns a channel closed when the loop started last exits, either
// by Stop, by its context or on a fetch error. It is nil before Start.
func (p *Pool) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.done
}

// Err returns the error that stopped the loop, without clearing it.
func (p *Pool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

// changedLocked records a subscriber change. A change during a fetch
// restarts it; otherwise the next cycle picks it up on schedule.
func (p *Pool) changedLocked() {
	p.generation++
	if p.fetching {
		signal(p.restart)
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

func matcherString(m filter.Matcher) string {
	if m == nil {
		return "all"
	}
	return m.String()
}
