package qbittorrent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/blang/semver"
	"github.com/rs/zerolog"

	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/hardlink"
)

// minWebAPIVersion is the first Web API generation with the v2 endpoints.
var minWebAPIVersion = semver.MustParse("2.0.0")

// API is the subset of the go-qbittorrent client used here.
type API interface {
	GetTorrentsCtx(ctx context.Context, o qbt.TorrentFilterOptions) ([]qbt.Torrent, error)
	GetFilesInformationCtx(ctx context.Context, hash string) (*qbt.TorrentFiles, error)
	GetTorrentTrackersCtx(ctx context.Context, hash string) ([]qbt.TorrentTracker, error)
	GetAppPreferencesCtx(ctx context.Context) (qbt.AppPreferences, error)
	PauseCtx(ctx context.Context, hashes []string) error
	ResumeCtx(ctx context.Context, hashes []string) error
	RecheckCtx(ctx context.Context, hashes []string) error
	ReAnnounceTorrentsCtx(ctx context.Context, hashes []string) error
	DeleteTorrentsCtx(ctx context.Context, hashes []string, deleteFiles bool) error
}

// Client wraps the qBittorrent API client
type Client struct {
	api     API
	peers   PeerSource
	links   hardlink.Counter
	logger  zerolog.Logger
	opts    clientOptions
	version string

	mu       sync.Mutex
	baseline map[string]string
}

// NewClient logs into the daemon at url and checks its Web API version.
func NewClient(ctx context.Context, url, username, password string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	api := qbt.NewClient(qbt.Config{
		Host:          url,
		Username:      username,
		Password:      password,
		BasicUser:     o.basicUser,
		BasicPass:     o.basicPass,
		Timeout:       int(o.timeout.Seconds()),
		TLSSkipVerify: o.tlsSkipVerify,
	})

	lctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := api.LoginCtx(lctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	version, err := api.GetWebAPIVersionCtx(lctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Web API version: %w", err)
	}
	if err := checkVersion(version); err != nil {
		return nil, err
	}

	logger.Debug().Str("url", url).Str("webapi", version).Msg("Connected to qBittorrent")

	c := newClient(api, newWebPeers(url, username, password, o, logger), logger, o)
	c.version = strings.TrimSpace(version)
	return c, nil
}

// New builds a Client on an existing API implementation.
func New(api API, peers PeerSource, logger zerolog.Logger, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(api, peers, logger, o)
}

func newClient(api API, peers PeerSource, logger zerolog.Logger, o clientOptions) *Client {
	return &Client{
		api:    api,
		peers:  peers,
		links:  hardlink.Count,
		logger: logger,
		opts:   o,
	}
}

func checkVersion(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty version", ErrUnsupportedVersion)
	}
	v, err := semver.ParseTolerant(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsupportedVersion, raw, err)
	}
	if v.LT(minWebAPIVersion) {
		return fmt.Errorf("%w: %s (need %s or later)", ErrUnsupportedVersion, v, minWebAPIVersion)
	}
	return nil
}

// Version returns the daemon's Web API version.
func (c *Client) Version() string {
	return c.version
}

// SetLinkCounter replaces the function used to fill the "links" key of files.
func (c *Client) SetLinkCounter(count hardlink.Counter) {
	c.links = count
}

// Select returns the ids and names of the torrents matched by m.
func (c *Client) Select(ctx context.Context, m filter.Matcher) ([]filter.Item, error) {
	res, err := c.Torrents().Fetch(ctx, m, filter.Keys("id", "name"))
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Stop pauses the torrents.
func (c *Client) Stop(ctx context.Context, hashes []string) error {
	return c.do(ctx, "stop", hashes, c.api.PauseCtx)
}

// Start resumes the torrents.
func (c *Client) Start(ctx context.Context, hashes []string) error {
	return c.do(ctx, "start", hashes, c.api.ResumeCtx)
}

// Verify rechecks the downloaded data of the torrents.
func (c *Client) Verify(ctx context.Context, hashes []string) error {
	return c.do(ctx, "verify", hashes, c.api.RecheckCtx)
}

// Announce reannounces the torrents to all their trackers.
func (c *Client) Announce(ctx context.Context, hashes []string) error {
	return c.do(ctx, "announce", hashes, c.api.ReAnnounceTorrentsCtx)
}

// Remove deletes the torrents, and their data when deleteFiles is set.
func (c *Client) Remove(ctx context.Context, hashes []string, deleteFiles bool) error {
	return c.do(ctx, "remove", hashes, func(ctx context.Context, hashes []string) error {
		return c.api.DeleteTorrentsCtx(ctx, hashes, deleteFiles)
	})
}

func (c *Client) do(ctx context.Context, action string, hashes []string, fn func(context.Context, []string) error) error {
	if len(hashes) == 0 {
		return ErrTorrentNotFound
	}
	if err := fn(ctx, hashes); err != nil {
		return fmt.Errorf("failed to %s torrents: %w", action, err)
	}
	c.logger.Debug().Str("action", action).Int("count", len(hashes)).Msg("Applied action")
	return nil
}

// Hashes extracts the "id" key of items.
func Hashes(items []filter.Item) []string {
	hashes := make([]string, 0, len(items))
	for _, it := range items {
		if v, ok := it.Get("id"); ok {
			if s, ok := v.(string); ok && s != "" {
				hashes = append(hashes, s)
			}
		}
	}
	return hashes
}
