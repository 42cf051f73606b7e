// Package qbittorrent connects the query layer to a qBittorrent daemon.
//
// It wraps the autobrr/go-qbittorrent library and exposes one pool.Fetcher
// per item domain. Every fetcher converts the daemon's records into
// filter.Fields keyed by the names the filter and sorter registries read.
//
// # Usage
//
//	client, err := qbittorrent.NewClient(ctx, url, username, password, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, _ := filter.Torrents.ParseArgs("seeding", "&", "ratio>2")
//	res, err := client.Torrents().Fetch(ctx, f, filter.Keys("name", "ratio"))
//
// Fetchers for files, peers and trackers query every torrent separately and
// report per-torrent failures in Result.Messages instead of failing.
package qbittorrent
