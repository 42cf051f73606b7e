package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/torq/filter"
)

const timeout = 2 * time.Second

type fetchCall struct {
	filter string
	keys   []string
}

type fakeFetcher struct {
	mu       sync.Mutex
	items    []filter.Item
	result   *Result
	err      error
	gate     chan struct{}
	calls    []fetchCall
	canceled int
	started  chan fetchCall
}

func newFakeFetcher(items ...filter.Item) *fakeFetcher {
	return &fakeFetcher{items: items, started: make(chan fetchCall, 64)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, m filter.Matcher, keys filter.KeySet) (*Result, error) {
	call := fetchCall{filter: matcherString(m), keys: keys.Sorted()}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate, err, result := f.gate, f.err, f.result
	items := filter.Apply(m, f.items, false)
	f.mu.Unlock()

	f.started <- call

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.mu.Lock()
			f.canceled++
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	return &Result{Success: true, Items: items}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) canceledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled
}

type recorder struct {
	ch chan []filter.Item
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan []filter.Item, 16)}
}

func (r *recorder) callback(items []filter.Item) {
	select {
	case r.ch <- items:
	default:
	}
}

func (r *recorder) receive(t *testing.T) []filter.Item {
	t.Helper()
	select {
	case items := <-r.ch:
		return items
	case <-time.After(timeout):
		t.Fatal("timed out waiting for callback")
		return nil
	}
}

func (r *recorder) assertQuiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case items := <-r.ch:
		t.Fatalf("unexpected callback with %d items", len(items))
	case <-time.After(d):
	}
}

func nextCall(t *testing.T, f *fakeFetcher) fetchCall {
	t.Helper()
	select {
	case c := <-f.started:
		return c
	case <-time.After(timeout):
		t.Fatal("timed out waiting for fetch")
		return fetchCall{}
	}
}

func names(items []filter.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		v, _ := it.Get("name")
		out = append(out, v.(string))
	}
	return out
}

func torrents() []filter.Item {
	return []filter.Item{
		filter.Fields{"id": "1", "name": "foo", "size": int64(10)},
		filter.Fields{"id": "2", "name": "bar", "size": int64(2000)},
		filter.Fields{"id": "3", "name": "foobar", "size": int64(1)},
	}
}

func newTestPool(t *testing.T, f Fetcher, opts ...Option) *Pool {
	t.Helper()
	p := New(f, append([]Option{WithLogger(zerolog.Nop()), WithInterval(time.Hour)}, opts...)...)
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func TestMergeFansOut(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f)

	a, b := newRecorder(), newRecorder()
	subA := p.Register("a", a.callback, filter.Keys("name"), filter.Torrents.MustParse("name~foo"))
	defer subA.Close()
	subB := p.Register("b", b.callback, filter.Keys("size"), filter.Torrents.MustParse("size>100"))
	defer subB.Close()

	require.NoError(t, p.Start(context.Background()))

	call := nextCall(t, f)
	assert.Equal(t, "name~foo|size>100", call.filter)
	assert.Equal(t, []string{"id", "name", "size"}, call.keys)

	assert.Equal(t, []string{"foo", "foobar"}, names(a.receive(t)))
	assert.Equal(t, []string{"bar"}, names(b.receive(t)))
}

func TestMergeWithUnfilteredSubscriber(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f)

	a, c := newRecorder(), newRecorder()
	subA := p.Register("a", a.callback, filter.Keys("name"), filter.Torrents.MustParse("name~foo"))
	defer subA.Close()
	subC := p.Register("c", c.callback, filter.Keys("size"), nil)
	defer subC.Close()

	require.NoError(t, p.Start(context.Background()))

	call := nextCall(t, f)
	assert.Equal(t, "all", call.filter)
	assert.Equal(t, []string{"id", "name", "size"}, call.keys)

	assert.Equal(t, []string{"foo", "foobar"}, names(a.receive(t)))
	assert.Equal(t, []string{"foo", "bar", "foobar"}, names(c.receive(t)))
}

func TestDuplicateFiltersAreMergedOnce(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f)

	a, b := newRecorder(), newRecorder()
	defer p.Register("a", a.callback, nil, filter.Torrents.MustParse("n~foo")).Close()
	defer p.Register("b", b.callback, nil, filter.Torrents.MustParse("name~foo")).Close()

	require.NoError(t, p.Start(context.Background()))

	assert.Equal(t, "name~foo", nextCall(t, f).filter)
	a.receive(t)
	b.receive(t)
}

func TestCloseExcludesFromNextMerge(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f)

	a, b := newRecorder(), newRecorder()
	subA := p.Register("a", a.callback, filter.Keys("name"), filter.Torrents.MustParse("name~foo"))
	defer subA.Close()
	subB := p.Register("b", b.callback, filter.Keys("size"), filter.Torrents.MustParse("size>100"))

	require.NoError(t, p.Start(context.Background()))
	nextCall(t, f)
	a.receive(t)
	b.receive(t)

	subB.Close()
	subB.Close()
	p.Poll()

	call := nextCall(t, f)
	assert.Equal(t, "name~foo", call.filter)
	assert.Equal(t, []string{"id", "name"}, call.keys)
	a.receive(t)
	b.assertQuiet(t, 50*time.Millisecond)
}

func TestRapidRegistrationRestartsFetch(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	f.gate = make(chan struct{})
	p := newTestPool(t, f)

	a, b, c := newRecorder(), newRecorder(), newRecorder()
	defer p.Register("a", a.callback, filter.Keys("name"), filter.Torrents.MustParse("name=foo")).Close()

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, "name=foo", nextCall(t, f).filter)

	defer p.Register("b", b.callback, filter.Keys("name"), filter.Torrents.MustParse("name=bar")).Close()
	assert.Equal(t, "name=foo|name=bar", nextCall(t, f).filter)

	defer p.Register("c", c.callback, filter.Keys("size"), filter.Torrents.MustParse("size<5")).Close()
	assert.Equal(t, "name=foo|name=bar|size<5", nextCall(t, f).filter)

	f.mu.Lock()
	close(f.gate)
	f.mu.Unlock()

	assert.Equal(t, []string{"foo"}, names(a.receive(t)))
	assert.Equal(t, []string{"bar"}, names(b.receive(t)))
	assert.Equal(t, []string{"foobar"}, names(c.receive(t)))

	assert.Eventually(t, func() bool { return f.canceledCount() == 2 }, timeout, 10*time.Millisecond)
	a.assertQuiet(t, 50*time.Millisecond)
	assert.Equal(t, 3, f.callCount())
}

func TestRemovalRestartsFetch(t *testing.T) {
	tests := []struct {
		name   string
		remove func(t *testing.T, p *Pool, sub *Subscription)
	}{
		{name: "remove", remove: func(t *testing.T, p *Pool, sub *Subscription) { require.NoError(t, p.Remove("b")) }},
		{name: "close", remove: func(t *testing.T, p *Pool, sub *Subscription) { sub.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher(torrents()...)
			f.gate = make(chan struct{})
			p := newTestPool(t, f)

			a, b := newRecorder(), newRecorder()
			defer p.Register("a", a.callback, filter.Keys("name"), filter.Torrents.MustParse("name=foo")).Close()
			sub := p.Register("b", b.callback, filter.Keys("size"), filter.Torrents.MustParse("name=bar"))
			defer sub.Close()

			require.NoError(t, p.Start(context.Background()))
			call := nextCall(t, f)
			assert.Equal(t, "name=foo|name=bar", call.filter)
			assert.Equal(t, []string{"id", "name", "size"}, call.keys)

			tt.remove(t, p, sub)
			call = nextCall(t, f)
			assert.Equal(t, "name=foo", call.filter)
			assert.Equal(t, []string{"id", "name"}, call.keys)

			f.mu.Lock()
			close(f.gate)
			f.mu.Unlock()

			assert.Equal(t, []string{"foo"}, names(a.receive(t)))
			b.assertQuiet(t, 100*time.Millisecond)

			_, ok := p.RequestedKeys("b")
			assert.False(t, ok)
			assert.Eventually(t, func() bool { return f.canceledCount() == 1 }, timeout, 10*time.Millisecond)
		})
	}
}

func TestIdleChangeWaitsForSchedule(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f)

	a, b := newRecorder(), newRecorder()
	defer p.Register("a", a.callback, nil, nil).Close()

	require.NoError(t, p.Start(context.Background()))
	nextCall(t, f)
	a.receive(t)

	defer p.Register("b", b.callback, nil, nil).Close()
	b.assertQuiet(t, 100*time.Millisecond)
	assert.Equal(t, 1, f.callCount())
}

func TestPoll(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f)

	a := newRecorder()
	defer p.Register("a", a.callback, nil, nil).Close()

	require.NoError(t, p.Start(context.Background()))
	a.receive(t)

	p.Poll()
	assert.Len(t, a.receive(t), 3)
	assert.Equal(t, 2, f.callCount())
}

func TestSetInterval(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f)

	a := newRecorder()
	defer p.Register("a", a.callback, nil, nil).Close()

	require.NoError(t, p.Start(context.Background()))
	a.receive(t)

	p.SetInterval(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, p.Interval())
	a.receive(t)
	a.receive(t)

	p.SetInterval(0)
	assert.Equal(t, 10*time.Millisecond, p.Interval(), "non-positive intervals are ignored")
}

func TestNoSubscribersSkipsFetch(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f, WithInterval(10*time.Millisecond))

	require.NoError(t, p.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.callCount())

	a := newRecorder()
	defer p.Register("a", a.callback, nil, nil).Close()
	a.receive(t)
}

func TestFetchErrorStopsLoop(t *testing.T) {
	boom := errors.New("boom")
	f := newFakeFetcher()
	f.err = boom
	p := newTestPool(t, f, WithInterval(10*time.Millisecond))

	a := newRecorder()
	defer p.Register("a", a.callback, nil, nil).Close()

	assert.Nil(t, p.Done())
	require.NoError(t, p.Start(context.Background()))
	select {
	case <-p.Done():
	case <-time.After(timeout):
		t.Fatal("loop did not exit on fetch error")
	}
	assert.Eventually(t, func() bool { return !p.Running() }, timeout, 5*time.Millisecond)
	assert.ErrorIs(t, p.Err(), boom)

	err := p.Stop()
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, p.Stop())
	a.assertQuiet(t, 30*time.Millisecond)
	assert.Equal(t, 1, f.callCount())
}

func TestPartialFailureIsDelivered(t *testing.T) {
	f := newFakeFetcher()
	f.result = &Result{Success: false, Items: torrents()[:1], Messages: []string{"tracker list failed"}}
	p := newTestPool(t, f)

	a := newRecorder()
	defer p.Register("a", a.callback, nil, nil).Close()

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, []string{"foo"}, names(a.receive(t)))
	assert.True(t, p.Running())
}

func TestStartStop(t *testing.T) {
	p := newTestPool(t, newFakeFetcher())

	assert.False(t, p.Running())
	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, p.Stop())
	assert.False(t, p.Running())

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())
}

func TestStopOnContextCancel(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	f.gate = make(chan struct{})
	p := newTestPool(t, f)

	defer p.Register("a", newRecorder().callback, nil, nil).Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	nextCall(t, f)

	cancel()
	assert.Eventually(t, func() bool { return f.canceledCount() == 1 }, timeout, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !p.Running() }, timeout, 5*time.Millisecond)
	assert.NoError(t, p.Stop())
}

func TestRemoveAndRequestedKeys(t *testing.T) {
	p := newTestPool(t, newFakeFetcher())

	err := p.Remove("missing")
	assert.ErrorIs(t, err, ErrUnknownSubscriber)

	p.Register("a", func([]filter.Item) {}, filter.Keys("name", "size"), nil)

	keys, ok := p.RequestedKeys("a")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "size"}, keys.Sorted())

	keys.Add("ratio")
	again, _ := p.RequestedKeys("a")
	assert.False(t, again.Has("ratio"), "returned keys are a copy")

	assert.Equal(t, []string{"a"}, p.Subscribers())
	require.NoError(t, p.Remove("a"))
	_, ok = p.RequestedKeys("a")
	assert.False(t, ok)
}

func TestStaleSubscriptionHandle(t *testing.T) {
	p := newTestPool(t, newFakeFetcher())
	noop := func([]filter.Item) {}

	first := p.Register("x", noop, filter.Keys("name"), nil)
	second := p.Register("x", noop, filter.Keys("size"), nil)

	first.Close()
	keys, ok := p.RequestedKeys("x")
	require.True(t, ok, "closing a stale handle must not remove the new registration")
	assert.Equal(t, []string{"size"}, keys.Sorted())

	assert.ErrorIs(t, first.Update(filter.Keys("ratio"), nil), ErrClosed)

	require.NoError(t, second.Update(filter.Keys("ratio"), nil))
	keys, _ = p.RequestedKeys("x")
	assert.Equal(t, []string{"ratio"}, keys.Sorted())

	second.Close()
	_, ok = p.RequestedKeys("x")
	assert.False(t, ok)
	assert.ErrorIs(t, second.Update(nil, nil), ErrClosed)
}

func TestUpdateChangesNextFetch(t *testing.T) {
	f := newFakeFetcher(torrents()...)
	p := newTestPool(t, f)

	a := newRecorder()
	sub := p.Register("a", a.callback, filter.Keys("name"), filter.Torrents.MustParse("name=foo"))
	defer sub.Close()

	require.NoError(t, p.Start(context.Background()))
	nextCall(t, f)
	a.receive(t)

	require.NoError(t, sub.Update(filter.Keys("size"), filter.Torrents.MustParse("size>100")))
	p.Poll()

	call := nextCall(t, f)
	assert.Equal(t, "size>100", call.filter)
	assert.Equal(t, []string{"id", "size"}, call.keys)
	assert.Equal(t, []string{"bar"}, names(a.receive(t)))
}

func TestFetcherFunc(t *testing.T) {
	var got filter.KeySet
	fn := FetcherFunc(func(_ context.Context, _ filter.Matcher, keys filter.KeySet) (*Result, error) {
		got = keys
		return &Result{Success: true}, nil
	})

	res, err := fn.Fetch(context.Background(), nil, filter.Keys("id"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, got.Has("id"))
}
