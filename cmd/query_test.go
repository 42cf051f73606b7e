package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/torq/config"
	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/sorter"
)

func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func testConfig() *config.Config {
	presets := filter.NewPresets(filter.Torrents)
	if err := presets.Register("old", "added>30d"); err != nil {
		panic(err)
	}
	return &config.Config{
		Filter: config.FilterConfig{
			Defaults: map[string]string{"torrent": "active"},
			Presets:  map[string]string{"old": "added>30d"},
		},
		Sort:    config.SortConfig{"torrent": "!ratio,name"},
		Presets: presets,
	}
}

func TestGetFilterExpression(t *testing.T) {
	withConfig(t, testConfig())

	tests := []struct {
		name    string
		domain  filter.Domain
		args    []string
		preset  string
		want    string
		wantErr bool
	}{
		{name: "args win", domain: filter.DomainTorrent, args: []string{"complete", "|", "ratio>2"}, preset: "old", want: "complete | ratio>2"},
		{name: "args keep spaces", domain: filter.DomainTorrent, args: []string{"name~foo bar"}, want: "'name~foo bar'"},
		{name: "preset", domain: filter.DomainTorrent, preset: "OLD", want: "added>30d"},
		{name: "missing preset", domain: filter.DomainTorrent, preset: "nope", wantErr: true},
		{name: "preset beats default", domain: filter.DomainTorrent, preset: "old", want: "added>30d"},
		{name: "config default", domain: filter.DomainTorrent, want: "active"},
		{name: "no default", domain: filter.DomainFile, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := getFilterExpression(tt.domain, tt.args, tt.preset)
			if tt.wantErr {
				assert.ErrorContains(t, err, "available: old")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteArgs(t *testing.T) {
	got := quoteArgs([]string{"plain", "two words", "it's"})
	assert.Equal(t, []string{"plain", "'two words'", `'it'\''s'`}, got)

	// quoted arguments survive a round trip through the line parser
	m, err := filter.Torrents.ParseLine(got[1])
	require.NoError(t, err)
	assert.True(t, m.Match(filter.Fields{"name": "Two Words Album"}))
}

func TestBuildQuery(t *testing.T) {
	withConfig(t, testConfig())

	t.Run("config defaults", func(t *testing.T) {
		q, err := buildQuery(filter.DomainTorrent, nil, &queryFlags{})
		require.NoError(t, err)

		require.NotNil(t, q.matcher)
		assert.True(t, q.sorter.Equal(mustSorter(t, filter.DomainTorrent, "!ratio,name")))

		keys := q.keys()
		assert.True(t, keys.Has("ratio"))
		assert.True(t, keys.Has("name"))
		assert.True(t, keys.Has("eta"))
	})

	t.Run("flags override", func(t *testing.T) {
		q, err := buildQuery(filter.DomainTorrent, []string{"ubuntu"}, &queryFlags{sort: "size", columns: []string{"name"}})
		require.NoError(t, err)

		assert.True(t, q.matcher.Match(filter.Fields{"name": "Ubuntu 24.04"}))
		assert.False(t, q.matcher.Match(filter.Fields{"name": "Debian 12"}))
		assert.Len(t, q.columns, 1)
		assert.True(t, q.keys().Has("size"))
	})

	t.Run("owner filter", func(t *testing.T) {
		q, err := buildQuery(filter.DomainFile, nil, &queryFlags{torrents: "complete"})
		require.NoError(t, err)
		assert.Nil(t, q.matcher)
		require.NotNil(t, q.owners)
	})

	errCases := map[string]struct {
		domain filter.Domain
		args   []string
		flags  queryFlags
	}{
		"unknown domain": {domain: "magnet"},
		"bad filter":     {domain: filter.DomainTorrent, args: []string{"nosuchfilter>1"}},
		"bad sort":       {domain: filter.DomainTorrent, flags: queryFlags{sort: "nosuchsort"}},
		"bad column":     {domain: filter.DomainTorrent, flags: queryFlags{columns: []string{"nosuchcolumn"}}},
		"bad owners":     {domain: filter.DomainPeer, flags: queryFlags{torrents: "ratio>abc"}},
	}
	for name, tc := range errCases {
		t.Run(name, func(t *testing.T) {
			_, err := buildQuery(tc.domain, tc.args, &tc.flags)
			assert.Error(t, err)
		})
	}
}

func mustSorter(t *testing.T, domain filter.Domain, spec string) *sorter.Sorter {
	t.Helper()
	r, ok := sorter.ForDomain(domain)
	require.True(t, ok)
	s, err := sorter.Parse(r, spec)
	require.NoError(t, err)
	return s
}
