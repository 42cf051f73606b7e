package qbittorrent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/torq/filter"
)

type fakeAPI struct {
	mu       sync.Mutex
	torrents []qbt.Torrent
	files    map[string][]map[string]any
	trackers map[string][]map[string]any
	prefs    qbt.AppPreferences
	failFor  string

	lastOpts qbt.TorrentFilterOptions
	actions  []string
}

func (f *fakeAPI) GetTorrentsCtx(_ context.Context, o qbt.TorrentFilterOptions) ([]qbt.Torrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastOpts = o
	if len(o.Hashes) == 0 {
		return f.torrents, nil
	}
	var out []qbt.Torrent
	for _, t := range f.torrents {
		for _, h := range o.Hashes {
			if t.Hash == h {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (f *fakeAPI) GetFilesInformationCtx(_ context.Context, hash string) (*qbt.TorrentFiles, error) {
	if hash == f.failFor {
		return nil, errors.New("boom")
	}
	var files qbt.TorrentFiles
	if err := recode(f.files[hash], &files); err != nil {
		return nil, err
	}
	return &files, nil
}

func (f *fakeAPI) GetTorrentTrackersCtx(_ context.Context, hash string) ([]qbt.TorrentTracker, error) {
	var trackers []qbt.TorrentTracker
	if err := recode(f.trackers[hash], &trackers); err != nil {
		return nil, err
	}
	return trackers, nil
}

func (f *fakeAPI) GetAppPreferencesCtx(context.Context) (qbt.AppPreferences, error) {
	return f.prefs, nil
}

func (f *fakeAPI) record(action string) func(context.Context, []string) error {
	return func(_ context.Context, hashes []string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.actions = append(f.actions, action+":"+hashes[0])
		return nil
	}
}

func (f *fakeAPI) PauseCtx(ctx context.Context, h []string) error  { return f.record("pause")(ctx, h) }
func (f *fakeAPI) ResumeCtx(ctx context.Context, h []string) error { return f.record("resume")(ctx, h) }
func (f *fakeAPI) RecheckCtx(ctx context.Context, h []string) error {
	return f.record("recheck")(ctx, h)
}
func (f *fakeAPI) ReAnnounceTorrentsCtx(ctx context.Context, h []string) error {
	return f.record("announce")(ctx, h)
}
func (f *fakeAPI) DeleteTorrentsCtx(ctx context.Context, h []string, deleteFiles bool) error {
	if deleteFiles {
		return f.record("delete+files")(ctx, h)
	}
	return f.record("delete")(ctx, h)
}

type fakePeers struct {
	mu       sync.Mutex
	byHash   map[string]map[string]Peer
	forgot   []map[string]struct{}
	requests []string
}

func (p *fakePeers) Peers(_ context.Context, hash string) (map[string]Peer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, hash)
	return p.byHash[hash], nil
}

func (p *fakePeers) forget(live map[string]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forgot = append(p.forgot, live)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		torrents: []qbt.Torrent{
			{Hash: "aaa", Name: "Ubuntu ISO", SavePath: "/data", State: qbt.TorrentStateUploading, Ratio: 2.5, Progress: 1, Size: 3 << 30, NumSeeds: 4, Tags: "linux, iso", AddedOn: 1700000000},
			{Hash: "bbb", Name: "Debian ISO", SavePath: "/data", State: qbt.TorrentStateDownloading, Ratio: 0.1, Progress: 0.5, Size: 1 << 30, DlSpeed: 1 << 20, AmountLeft: 10 << 20, ETA: 10, NumLeechs: 1},
		},
		files: map[string][]map[string]any{
			"aaa": {{"index": 0, "name": "Ubuntu ISO/ubuntu.iso", "size": 3 << 30, "progress": 1, "priority": 1}},
			"bbb": {
				{"index": 0, "name": "Debian ISO/debian.iso", "size": 1 << 30, "progress": 0.5, "priority": 1},
				{"index": 1, "name": "Debian ISO/README", "size": 100, "progress": 0, "priority": 0},
			},
		},
		trackers: map[string][]map[string]any{
			"aaa": {
				{"url": "** [DHT] **", "status": 2, "tier": -1},
				{"url": "https://tracker.example.org/announce", "status": 2, "tier": 0, "num_seeds": 10},
			},
			"bbb": {{"url": "udp://www.other.net:1337", "status": 4, "tier": 0, "msg": "unregistered"}},
		},
	}
}

func newTestClient(api *fakeAPI, peers PeerSource) *Client {
	return New(api, peers, zerolog.Nop(), WithConcurrency(2))
}

func fieldNames(items []filter.Item, key string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		v, _ := it.Get(key)
		s, _ := v.(string)
		out = append(out, s)
	}
	return out
}

func TestTorrentsFetch(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api, nil)

	m, err := filter.Torrents.ParseArgs("seeding", "&", "ratio>1")
	require.NoError(t, err)

	res, err := c.Torrents().Fetch(context.Background(), m, filter.Keys("name", "ratio"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Items, 1)

	item := res.Items[0].(filter.Fields)
	assert.Equal(t, "Ubuntu ISO", item["name"])
	assert.Equal(t, 2.5, item["ratio"])
	_, hasState := item["state"]
	assert.False(t, hasState, "unrequested keys are projected away")
}

func TestTorrentsHashPushdown(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api, nil)

	m, err := filter.Torrents.ParseArgs("id=bbb", "|", "id=aaa")
	require.NoError(t, err)

	res, err := c.Torrents().Fetch(context.Background(), m, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bbb", "aaa"}, api.lastOpts.Hashes)
	assert.Len(t, res.Items, 2)

	_, err = c.Torrents().Fetch(context.Background(), filter.Torrents.MustParse("!id=aaa"), nil)
	require.NoError(t, err)
	assert.Empty(t, api.lastOpts.Hashes, "inverted selections cannot be pushed down")
}

func TestTorrentsHashIgnoresCase(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api, nil)

	res, err := c.Torrents().Fetch(context.Background(), filter.Torrents.MustParse("id=AAA"), filter.Keys("name"))
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa"}, api.lastOpts.Hashes)
	assert.Equal(t, []string{"Ubuntu ISO"}, fieldNames(res.Items, "name"))
}

func TestTorrentFields(t *testing.T) {
	api := newFakeAPI()
	ubuntu := torrentFields(api.torrents[0])
	debian := torrentFields(api.torrents[1])

	assert.Equal(t, []string{"linux", "iso"}, ubuntu["tags"])
	assert.Equal(t, 100.0, ubuntu["progress"])
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ubuntu["added"])
	_, hasCompleted := ubuntu["completed"]
	assert.False(t, hasCompleted)

	assert.Equal(t, 10*time.Second, debian["eta"])
	assert.Equal(t, []string{}, debian["tags"])
}

func TestTorrentETA(t *testing.T) {
	tests := []struct {
		name    string
		torrent qbt.Torrent
		want    time.Duration
		wantOK  bool
	}{
		{name: "downloading", torrent: qbt.Torrent{Progress: 0.5, AmountLeft: 100, ETA: 90}, want: 90 * time.Second, wantOK: true},
		{name: "complete", torrent: qbt.Torrent{Progress: 1, ETA: 0}},
		{name: "complete with seed limit", torrent: qbt.Torrent{Progress: 1, ETA: 3600}},
		{name: "stalled", torrent: qbt.Torrent{Progress: 0.2, AmountLeft: 100, ETA: infiniteETA}},
		{name: "negative", torrent: qbt.Torrent{Progress: 0.2, AmountLeft: 100, ETA: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := torrentETA(tt.torrent)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	// seeding torrents have no eta and never match an eta comparison
	c := newTestClient(newFakeAPI(), nil)
	res, err := c.Torrents().Fetch(context.Background(), filter.Torrents.MustParse("eta<1h"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Debian ISO"}, fieldNames(res.Items, "name"))
}

func TestFilesFetch(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api, nil)
	c.SetLinkCounter(func(path string) (int, error) {
		if path == "/data/Ubuntu ISO/ubuntu.iso" {
			return 2, nil
		}
		return 1, nil
	})

	res, err := c.Files(nil).Fetch(context.Background(), filter.Files.MustParse("hardlinked"), filter.Keys("name", "links"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ubuntu.iso"}, fieldNames(res.Items, "name"))

	owner := filter.Torrents.MustParse("name~debian")
	res, err = c.Files(owner).Fetch(context.Background(), filter.Files.MustParse("wanted"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"debian.iso"}, fieldNames(res.Items, "name"))
	assert.Equal(t, []string{"bbb/0"}, fieldNames(res.Items, "id"))
}

func TestFilesPartialFailure(t *testing.T) {
	api := newFakeAPI()
	api.failFor = "bbb"
	c := newTestClient(api, nil)

	res, err := c.Files(nil).Fetch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "Debian ISO")
	assert.Equal(t, []string{"ubuntu.iso"}, fieldNames(res.Items, "name"))
}

func TestTrackersFetch(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api, nil)

	res, err := c.Trackers(nil).Fetch(context.Background(), filter.Trackers.MustParse("error"), nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	item := res.Items[0].(filter.Fields)
	assert.Equal(t, "other.net", item["domain"])
	assert.Equal(t, filter.TrackerNotWorking, item["status"])
	assert.Equal(t, "Debian ISO", item["torrent-name"])

	res, err = c.Trackers(nil).Fetch(context.Background(), filter.Trackers.MustParse("domain=example"), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	res, err = c.Trackers(nil).Fetch(context.Background(), filter.Trackers.MustParse("domain~example"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tracker.example.org"}, fieldNames(res.Items, "domain"))
}

func TestPeersFetch(t *testing.T) {
	api := newFakeAPI()
	peers := &fakePeers{byHash: map[string]map[string]Peer{
		"aaa": {
			"10.0.0.1:6881": {IP: "10.0.0.1", Port: 6881, Client: "qBittorrent/5.0.0", Progress: 1, UpSpeed: 2048},
			"10.0.0.2:6881": {IP: "10.0.0.2", Port: 6881, Client: "Transmission 4.0", Progress: 0.2},
		},
	}}
	c := newTestClient(api, peers)

	res, err := c.PeerList(nil).Fetch(context.Background(), filter.Peers.MustParse("seeding"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1"}, fieldNames(res.Items, "host"))
	assert.Equal(t, []string{"aaa/10.0.0.1:6881"}, fieldNames(res.Items, "id"))
	assert.ElementsMatch(t, []string{"aaa", "bbb"}, peers.requests)

	require.Len(t, peers.forgot, 1)
	assert.Equal(t, map[string]struct{}{"aaa": {}, "bbb": {}}, peers.forgot[0])
}

func TestPeerStateKeptOutsideFullListing(t *testing.T) {
	api := newFakeAPI()
	peers := &fakePeers{}
	c := newTestClient(api, peers)
	ctx := context.Background()

	_, err := c.PeerList(filter.Torrents.MustParse("id=aaa")).Fetch(ctx, nil, nil)
	require.NoError(t, err)
	_, err = c.Files(nil).Fetch(ctx, nil, nil)
	require.NoError(t, err)
	_, err = c.Trackers(nil).Fetch(ctx, nil, nil)
	require.NoError(t, err)

	assert.Empty(t, peers.forgot)
	assert.Equal(t, []string{"aaa"}, peers.requests)
}

func TestSettingsFetch(t *testing.T) {
	values, err := flattenSettings(map[string]any{
		"save_path":   "/data",
		"dht":         true,
		"listen_port": 6881,
		"max_ratio":   1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"save_path":   "/data",
		"dht":         "true",
		"listen_port": "6881",
		"max_ratio":   "1.5",
	}, values)

	c := newTestClient(newFakeAPI(), nil)
	res, err := c.Settings().Fetch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = c.Settings().Fetch(context.Background(), filter.Settings.MustParse("changed"), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestActions(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api, nil)
	ctx := context.Background()

	items, err := c.Select(ctx, filter.Torrents.MustParse("downloading"))
	require.NoError(t, err)
	hashes := Hashes(items)
	assert.Equal(t, []string{"bbb"}, hashes)

	require.NoError(t, c.Stop(ctx, hashes))
	require.NoError(t, c.Start(ctx, hashes))
	require.NoError(t, c.Verify(ctx, hashes))
	require.NoError(t, c.Announce(ctx, hashes))
	require.NoError(t, c.Remove(ctx, hashes, true))
	assert.Equal(t, []string{"pause:bbb", "resume:bbb", "recheck:bbb", "announce:bbb", "delete+files:bbb"}, api.actions)

	assert.ErrorIs(t, c.Stop(ctx, nil), ErrTorrentNotFound)
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{version: "2.11.2", wantErr: false},
		{version: "2.0", wantErr: false},
		{version: " v2.8.3\n", wantErr: false},
		{version: "1.19.1", wantErr: true},
		{version: "", wantErr: true},
		{version: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := checkVersion(tt.version)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedVersion)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFetcherForDomain(t *testing.T) {
	c := newTestClient(newFakeAPI(), nil)
	for _, d := range []filter.Domain{filter.DomainTorrent, filter.DomainFile, filter.DomainPeer, filter.DomainTracker, filter.DomainSetting} {
		f, err := c.Fetcher(d)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}
	_, err := c.Fetcher("nope")
	assert.Error(t, err)
}
