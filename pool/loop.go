package pool

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/s0up4200/torq/filter"
)

// request is the merged query of one fetch.
type request struct {
	subscribers []*subscriber
	keys        filter.KeySet
	filter      filter.Matcher
	generation  uint64
}

type outcome struct {
	result *Result
	err    error
}

func (p *Pool) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	for {
		if err := p.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.fail(err)
			return
		}
		if !p.wait(ctx) {
			return
		}
	}
}

func (p *Pool) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
	p.logger.Error().Err(err).Msg("Polling stopped")
}

// cycle performs one fetch and delivers it. A subscriber change while the
// fetch is in flight cancels it and starts over with the new merge.
func (p *Pool) cycle(ctx context.Context) error {
	defer p.finishCycle()

	for {
		req, ok := p.merge()
		if !ok {
			p.logger.Trace().Msg("No subscribers, skipping fetch")
			return nil
		}

		fctx, cancel := context.WithCancel(ctx)
		results := make(chan outcome, 1)
		go func() {
			res, err := p.fetcher.Fetch(fctx, req.filter, req.keys)
			results <- outcome{res, err}
		}()

		p.logger.Debug().Strs("keys", req.keys.Sorted()).Str("filter", matcherString(req.filter)).Msg("Fetching")

		select {
		case <-ctx.Done():
			cancel()
			p.endFetch()
			return ctx.Err()

		case <-p.restart:
			cancel()
			p.endFetch()
			p.logger.Debug().Msg("Subscribers changed, restarting fetch")
			continue

		case out := <-results:
			cancel()
			if p.endFetch() != req.generation {
				p.logger.Debug().Msg("Subscribers changed during fetch, discarding result")
				continue
			}
			if out.err != nil {
				if errors.Is(out.err, context.Canceled) && ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("fetch failed: %w", out.err)
			}
			p.deliver(req, out.result)
			return nil
		}
	}
}

// merge snapshots the live subscribers into one request and marks a fetch
// as in flight. It reports false when there is nobody to fetch for.
func (p *Pool) merge() (request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	drain(p.restart)
	drain(p.wake)

	if len(p.subscribers) == 0 {
		return request{}, false
	}

	req := request{keys: p.baseKeys.Clone(), generation: p.generation}
	var (
		filters []filter.Matcher
		all     bool
	)
	for _, id := range slices.Sorted(maps.Keys(p.subscribers)) {
		sub := p.subscribers[id]
		req.subscribers = append(req.subscribers, sub)
		req.keys.Add(sub.keys.Sorted()...)
		if sub.filter == nil {
			all = true
			continue
		}
		req.keys.Add(sub.filter.NeededKeys().Sorted()...)
		filters = append(filters, sub.filter)
	}
	if !all {
		req.filter = filter.Or(filters...)
	}

	p.fetching = true
	return req, true
}

// endFetch clears the in-flight mark and returns the current generation.
func (p *Pool) endFetch() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fetching = false
	return p.generation
}

func (p *Pool) finishCycle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastCycle = time.Now()
}

// deliver hands each subscriber the items matching its own filter.
func (p *Pool) deliver(req request, res *Result) {
	if res == nil {
		res = &Result{Success: true}
	}
	if !res.Success {
		p.logger.Warn().Strs("messages", res.Messages).Msg("Fetch partially failed")
	}

	for _, sub := range req.subscribers {
		if !p.live(sub) {
			continue
		}
		sub.callback(filter.Apply(sub.filter, res.Items, false))
	}
}

func (p *Pool) live(sub *subscriber) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.subscribers[sub.id] == sub
}

// wait blocks until the next cycle is due. It returns false when the loop
// must exit.
func (p *Pool) wait(ctx context.Context) bool {
	for {
		p.mu.Lock()
		due := p.lastCycle.Add(p.interval)
		p.mu.Unlock()

		timer := time.NewTimer(time.Until(due))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
			return true
		case <-p.wake:
			timer.Stop()
			return true
		case <-p.reset:
			timer.Stop()
		}
	}
}
