package qbittorrent

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/s0up4200/torq/filter"
)

// torrentFields converts a torrent to the keys of filter.Torrents.
func torrentFields(t qbt.Torrent) filter.Fields {
	f := filter.Fields{
		"id":          strings.ToLower(t.Hash),
		"name":        t.Name,
		"category":    t.Category,
		"tags":        splitTags(t.Tags),
		"tracker":     t.Tracker,
		"path":        t.SavePath,
		"state":       string(t.State),
		"size":        int64(t.Size),
		"downloaded":  int64(t.Downloaded),
		"uploaded":    int64(t.Uploaded),
		"ratio":       float64(t.Ratio),
		"progress":    float64(t.Progress) * 100,
		"rate-down":   int64(t.DlSpeed),
		"rate-up":     int64(t.UpSpeed),
		"seeds":       int64(t.NumSeeds),
		"leeches":     int64(t.NumLeechs),
		"active-time": time.Duration(t.TimeActive) * time.Second,
	}

	if t.AddedOn > 0 {
		f["added"] = time.Unix(int64(t.AddedOn), 0).UTC()
	}
	if t.CompletionOn > 0 {
		f["completed"] = time.Unix(int64(t.CompletionOn), 0).UTC()
	}
	if eta, ok := torrentETA(t); ok {
		f["eta"] = eta
	}

	return f
}

// infiniteETA is the eta the daemon reports for torrents that will not
// finish at the current rate.
const infiniteETA = 8640000

// torrentETA reports false for complete torrents and for downloads without
// a finite estimate.
func torrentETA(t qbt.Torrent) (time.Duration, bool) {
	if t.Progress >= 1 || t.AmountLeft <= 0 {
		return 0, false
	}
	if t.ETA < 0 || t.ETA >= infiniteETA {
		return 0, false
	}
	return time.Duration(t.ETA) * time.Second, true
}

func splitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// Records decoded from the Web API's JSON names.
type (
	fileRecord struct {
		Index    int     `json:"index"`
		Name     string  `json:"name"`
		Size     int64   `json:"size"`
		Progress float64 `json:"progress"`
		Priority int     `json:"priority"`
	}

	trackerRecord struct {
		URL           string `json:"url"`
		Status        int    `json:"status"`
		Tier          int    `json:"tier"`
		NumPeers      int    `json:"num_peers"`
		NumSeeds      int    `json:"num_seeds"`
		NumLeeches    int    `json:"num_leeches"`
		NumDownloaded int    `json:"num_downloaded"`
		Message       string `json:"msg"`
	}
)

// recode copies src into dst through its JSON representation.
func recode(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to encode %T: %w", src, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %T: %w", src, err)
	}
	return nil
}

func (r fileRecord) fields(owner qbt.Torrent) filter.Fields {
	hash := strings.ToLower(owner.Hash)
	return filter.Fields{
		"id":           fmt.Sprintf("%s/%d", hash, r.Index),
		"torrent-id":   hash,
		"torrent-name": owner.Name,
		"save-path":    owner.SavePath,
		"name":         path.Base(r.Name),
		"path":         r.Name,
		"size":         r.Size,
		"progress":     r.Progress * 100,
		"priority":     int64(r.Priority),
	}
}

func (r Peer) fields(key string, owner qbt.Torrent) filter.Fields {
	hash := strings.ToLower(owner.Hash)
	host := r.IP
	if host == "" {
		host = key
	}
	return filter.Fields{
		"id":           hash + "/" + key,
		"torrent-id":   hash,
		"torrent-name": owner.Name,
		"host":         host,
		"port":         int64(r.Port),
		"client":       r.Client,
		"country":      r.Country,
		"progress":     r.Progress * 100,
		"rate-down":    r.DlSpeed,
		"rate-up":      r.UpSpeed,
	}
}

func (r trackerRecord) fields(owner qbt.Torrent) filter.Fields {
	hash := strings.ToLower(owner.Hash)
	return filter.Fields{
		"id":           hash + "/" + r.URL,
		"torrent-id":   hash,
		"torrent-name": owner.Name,
		"url":          r.URL,
		"domain":       trackerDomain(r.URL),
		"tier":         int64(r.Tier),
		"status":       trackerStatus(r.Status),
		"message":      r.Message,
		"seeds":        int64(r.NumSeeds),
		"leeches":      int64(r.NumLeeches),
		"peers":        int64(r.NumPeers),
		"downloads":    int64(r.NumDownloaded),
	}
}

// trackerStatus maps the numeric Web API status.
func trackerStatus(code int) string {
	switch code {
	case 0:
		return filter.TrackerDisabled
	case 1:
		return filter.TrackerNotContacted
	case 2:
		return filter.TrackerWorking
	case 3:
		return filter.TrackerUpdating
	default:
		return filter.TrackerNotWorking
	}
}

// trackerDomain returns the host of an announce URL without a leading
// "www.", or "" for DHT, PeX and LSD pseudo trackers.
func trackerDomain(announce string) string {
	u, err := url.Parse(announce)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// project keeps only the requested keys. An empty set keeps everything.
func project(f filter.Fields, keys filter.KeySet) filter.Item {
	if len(keys) == 0 {
		return f
	}
	out := make(filter.Fields, len(keys))
	for k := range keys {
		if v, ok := f[k]; ok {
			out[k] = v
		}
	}
	return out
}
