package qbittorrent

import "errors"

// Common errors returned by the qBittorrent client.
var (
	// ErrTorrentNotFound is returned when a selection matches no torrent.
	ErrTorrentNotFound = errors.New("torrent not found")

	// ErrConnectionFailed is returned when connection to qBittorrent fails.
	ErrConnectionFailed = errors.New("connection to qBittorrent failed")

	// ErrUnsupportedVersion is returned for daemons older than Web API v2.
	ErrUnsupportedVersion = errors.New("unsupported qBittorrent Web API version")
)
