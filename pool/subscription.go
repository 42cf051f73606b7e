package pool

import (
	"sync/atomic"

	"github.com/s0up4200/torq/filter"
)

// Subscription is the handle returned by Register. Closing it removes the
// subscriber before the next merge. A handle whose id was registered again
// since no longer owns the registration: Close and Update become no-ops.
type Subscription struct {
	pool   *Pool
	id     string
	handle uint64
	closed atomic.Bool
}

// ID returns the subscriber id.
func (s *Subscription) ID() string {
	return s.id
}

// Update replaces the keys and filter of the subscription.
func (s *Subscription) Update(keys filter.KeySet, f filter.Matcher) error {
	if s.closed.Load() {
		return ErrClosed
	}

	p := s.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, ok := p.subscribers[s.id]
	if !ok || sub.handle != s.handle {
		return ErrClosed
	}
	p.subscribers[s.id] = &subscriber{
		id:       s.id,
		callback: sub.callback,
		keys:     keys.Clone(),
		filter:   f,
		handle:   s.handle,
	}
	p.changedLocked()
	return nil
}

// Close removes the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	if s.closed.Swap(true) {
		return
	}

	p := s.pool
	p.mu.Lock()
	defer p.mu.Unlock()

	if sub, ok := p.subscribers[s.id]; ok && sub.handle == s.handle {
		delete(p.subscribers, s.id)
		p.changedLocked()
		p.logger.Debug().Str("subscriber", s.id).Msg("Subscription closed")
	}
}
