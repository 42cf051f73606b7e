package qbittorrent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	qbt "github.com/autobrr/go-qbittorrent"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/hardlink"
	"github.com/s0up4200/torq/pool"
)

// Fetcher returns the pool.Fetcher for items of domain d.
func (c *Client) Fetcher(d filter.Domain) (pool.Fetcher, error) {
	switch d {
	case filter.DomainTorrent:
		return c.Torrents(), nil
	case filter.DomainFile:
		return c.Files(nil), nil
	case filter.DomainPeer:
		return c.PeerList(nil), nil
	case filter.DomainTracker:
		return c.Trackers(nil), nil
	case filter.DomainSetting:
		return c.Settings(), nil
	}
	return nil, fmt.Errorf("no fetcher for domain %q", d)
}

// Torrents returns a fetcher for torrents.
func (c *Client) Torrents() pool.Fetcher {
	return pool.FetcherFunc(func(ctx context.Context, m filter.Matcher, keys filter.KeySet) (*pool.Result, error) {
		torrents, err := c.torrents(ctx, pushdown(m))
		if err != nil {
			return nil, err
		}

		items := make([]filter.Item, 0, len(torrents))
		for _, t := range torrents {
			f := torrentFields(t)
			if m != nil && !m.Match(f) {
				continue
			}
			items = append(items, project(f, keys))
		}
		return &pool.Result{Success: true, Items: items}, nil
	})
}

// Files returns a fetcher for the files of the torrents matched by owners.
// A nil owners selects every torrent.
func (c *Client) Files(owners filter.Matcher) pool.Fetcher {
	return pool.FetcherFunc(func(ctx context.Context, m filter.Matcher, keys filter.KeySet) (*pool.Result, error) {
		res, _, err := c.perTorrent(ctx, owners, m, keys, func(ctx context.Context, t qbt.Torrent) ([]filter.Fields, error) {
			files, err := c.api.GetFilesInformationCtx(ctx, t.Hash)
			if err != nil {
				return nil, err
			}
			if files == nil {
				return nil, errors.New("empty response")
			}

			var records []fileRecord
			if err := recode(files, &records); err != nil {
				return nil, err
			}
			out := make([]filter.Fields, 0, len(records))
			for i, r := range records {
				if r.Index == 0 && i > 0 {
					r.Index = i
				}
				out = append(out, r.fields(t))
			}
			return out, nil
		}, c.countLinks(keys))
		return res, err
	})
}

// PeerList returns a fetcher for the peers of the torrents matched by owners.
// Torrents without connected peers are skipped.
func (c *Client) PeerList(owners filter.Matcher) pool.Fetcher {
	return pool.FetcherFunc(func(ctx context.Context, m filter.Matcher, keys filter.KeySet) (*pool.Result, error) {
		connected := filter.Matcher(connectedSpec{})
		if owners != nil {
			connected = filter.And(owners, connected)
		}
		res, live, err := c.perTorrent(ctx, connected, m, keys, func(ctx context.Context, t qbt.Torrent) ([]filter.Fields, error) {
			peers, err := c.peers.Peers(ctx, t.Hash)
			if err != nil {
				return nil, err
			}
			out := make([]filter.Fields, 0, len(peers))
			for key, peer := range peers {
				out = append(out, peer.fields(key, t))
			}
			return out, nil
		}, nil)
		if err != nil {
			return nil, err
		}

		// sync state is pruned only against a full torrent listing
		if f, ok := c.peers.(interface{ forget(map[string]struct{}) }); ok && len(pushdown(connected).Hashes) == 0 {
			f.forget(live)
		}
		return res, nil
	})
}

// Trackers returns a fetcher for the trackers of the torrents matched by owners.
func (c *Client) Trackers(owners filter.Matcher) pool.Fetcher {
	return pool.FetcherFunc(func(ctx context.Context, m filter.Matcher, keys filter.KeySet) (*pool.Result, error) {
		res, _, err := c.perTorrent(ctx, owners, m, keys, func(ctx context.Context, t qbt.Torrent) ([]filter.Fields, error) {
			trackers, err := c.api.GetTorrentTrackersCtx(ctx, t.Hash)
			if err != nil {
				return nil, err
			}
			var records []trackerRecord
			if err := recode(trackers, &records); err != nil {
				return nil, err
			}
			out := make([]filter.Fields, 0, len(records))
			for _, r := range records {
				out = append(out, r.fields(t))
			}
			return out, nil
		}, nil)
		return res, err
	})
}

func (c *Client) torrents(ctx context.Context, opts qbt.TorrentFilterOptions) ([]qbt.Torrent, error) {
	torrents, err := c.api.GetTorrentsCtx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get torrents: %w", err)
	}
	c.logger.Trace().Int("count", len(torrents)).Strs("hashes", opts.Hashes).Msg("Retrieved torrents")
	return torrents, nil
}

type fetchOne func(ctx context.Context, t qbt.Torrent) ([]filter.Fields, error)

// perTorrent runs fetch for every torrent matched by owners with bounded
// concurrency. A failing torrent is reported in Messages and skipped. It
// also returns the hashes of every torrent the daemon listed.
func (c *Client) perTorrent(ctx context.Context, owners, m filter.Matcher, keys filter.KeySet, fetch fetchOne, finish func([]filter.Fields)) (*pool.Result, map[string]struct{}, error) {
	torrents, err := c.torrents(ctx, pushdown(owners))
	if err != nil {
		return nil, nil, err
	}

	var (
		mu       sync.Mutex
		collect  = make([][]filter.Fields, len(torrents))
		messages []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.concurrency)

	live := make(map[string]struct{}, len(torrents))
	for i, t := range torrents {
		live[t.Hash] = struct{}{}
		if owners != nil && !owners.Match(torrentFields(t)) {
			continue
		}
		g.Go(func() error {
			out, err := fetch(gctx, t)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				mu.Lock()
				messages = append(messages, fmt.Sprintf("%s: %v", t.Name, err))
				mu.Unlock()
				c.logger.Warn().Err(err).Str("hash", t.Hash).Msg("Failed to fetch torrent details")
				return nil
			}
			collect[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []filter.Fields
	for _, out := range collect {
		all = append(all, out...)
	}
	if finish != nil {
		finish(all)
	}

	items := make([]filter.Item, 0, len(all))
	for _, f := range all {
		if m != nil && !m.Match(f) {
			continue
		}
		items = append(items, project(f, keys))
	}

	return &pool.Result{
		Success:  len(messages) == 0,
		Items:    items,
		Messages: messages,
	}, live, nil
}

// countLinks fills the "links" key of local files when it is requested.
func (c *Client) countLinks(keys filter.KeySet) func([]filter.Fields) {
	if !keys.Has("links") || c.links == nil {
		return nil
	}
	return func(files []filter.Fields) {
		count := hardlink.Cached(c.links)
		for _, f := range files {
			root, _ := f["save-path"].(string)
			rel, _ := f["path"].(string)
			if root == "" {
				continue
			}
			n, err := count(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				c.logger.Trace().Err(err).Str("path", rel).Msg("Cannot count hard links")
				continue
			}
			f["links"] = int64(n)
		}
	}
}

// pushdown translates the parts of m the daemon can evaluate itself into
// request options. The result always selects a superset of m.
func pushdown(m filter.Matcher) qbt.TorrentFilterOptions {
	var opts qbt.TorrentFilterOptions
	if hashes, ok := hashSelection(m); ok {
		opts.Hashes = hashes
	}
	return opts
}

// hashSelection reports the hashes m is restricted to, if it is an id=
// filter or an OR of them.
func hashSelection(m filter.Matcher) ([]string, bool) {
	switch v := m.(type) {
	case filter.Filter:
		if v.Name() != "id" || v.Inverted() || v.Operator() != filter.OpEqual {
			return nil, false
		}
		hash, ok := v.Value().(string)
		if !ok || hash == "" {
			return nil, false
		}
		return []string{strings.ToLower(hash)}, true
	case filter.OrFilter:
		var hashes []string
		for _, member := range v {
			h, ok := hashSelection(member)
			if !ok {
				return nil, false
			}
			hashes = append(hashes, h...)
		}
		return hashes, len(hashes) > 0
	case filter.AndFilter:
		for _, member := range v {
			if h, ok := hashSelection(member); ok {
				return h, true
			}
		}
	}
	return nil, false
}

// connectedSpec matches torrents with at least one connected peer.
type connectedSpec struct{}

func (connectedSpec) Match(item filter.Item) bool {
	seeds, _ := item.Get("seeds")
	leeches, _ := item.Get("leeches")
	s, _ := seeds.(int64)
	l, _ := leeches.(int64)
	return s+l > 0
}

func (connectedSpec) NeededKeys() filter.KeySet { return filter.Keys("seeds", "leeches") }

func (connectedSpec) String() string { return "seeds>0|leeches>0" }
