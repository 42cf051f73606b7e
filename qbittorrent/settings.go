package qbittorrent

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/s0up4200/torq/filter"
	"github.com/s0up4200/torq/pool"
)

// settingDescriptions documents the preferences users ask about most.
var settingDescriptions = map[string]string{
	"save_path":                    "Default save path for torrents",
	"temp_path_enabled":            "Keep incomplete torrents in temp_path",
	"temp_path":                    "Path for incomplete torrents",
	"max_active_downloads":         "Maximum number of active downloads",
	"max_active_uploads":           "Maximum number of active uploads",
	"max_active_torrents":          "Maximum number of active torrents",
	"max_connec":                   "Global maximum number of connections",
	"max_connec_per_torrent":       "Maximum number of connections per torrent",
	"max_uploads":                  "Global maximum number of upload slots",
	"max_uploads_per_torrent":      "Maximum number of upload slots per torrent",
	"dl_limit":                     "Global download rate limit in bytes per second",
	"up_limit":                     "Global upload rate limit in bytes per second",
	"alt_dl_limit":                 "Alternative download rate limit in bytes per second",
	"alt_up_limit":                 "Alternative upload rate limit in bytes per second",
	"listen_port":                  "Port for incoming connections",
	"upnp":                         "Use UPnP/NAT-PMP port forwarding",
	"dht":                          "Enable the distributed hash table",
	"pex":                          "Enable peer exchange",
	"lsd":                          "Enable local service discovery",
	"encryption":                   "Encryption mode (0 prefer, 1 force, 2 disable)",
	"queueing_enabled":             "Enable torrent queueing",
	"max_ratio_enabled":            "Stop seeding at max_ratio",
	"max_ratio":                    "Global share ratio limit",
	"max_seeding_time_enabled":     "Stop seeding after max_seeding_time",
	"max_seeding_time":             "Global seeding time limit in minutes",
	"add_trackers_enabled":         "Append add_trackers to new torrents",
	"add_trackers":                 "Trackers appended to new torrents",
	"web_ui_port":                  "Web UI port",
	"web_ui_username":              "Web UI user name",
	"auto_tmm_enabled":             "Use automatic torrent management by default",
	"create_subfolder_enabled":     "Create a subfolder for multi-file torrents",
	"start_paused_enabled":         "Add torrents stopped",
	"incomplete_files_ext":         "Append .!qB to incomplete files",
	"preallocate_all":              "Preallocate disk space for all files",
	"announce_to_all_trackers":     "Announce to all trackers of a tier",
	"announce_to_all_tiers":        "Announce to all tiers",
	"scheduler_enabled":            "Apply the alternative rate limits on schedule",
	"bypass_local_auth":            "Skip authentication for clients on localhost",
	"anonymous_mode":               "Hide identifying information from peers",
	"max_active_checking_torrents": "Maximum number of torrents checked at once",
}

// Settings returns a fetcher for the daemon preferences. The "changed" key is
// relative to the first snapshot this Client saw.
func (c *Client) Settings() pool.Fetcher {
	return pool.FetcherFunc(func(ctx context.Context, m filter.Matcher, keys filter.KeySet) (*pool.Result, error) {
		prefs, err := c.api.GetAppPreferencesCtx(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get preferences: %w", err)
		}

		values, err := flattenSettings(prefs)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.baseline == nil {
			c.baseline = values
		}
		baseline := c.baseline
		c.mu.Unlock()

		items := make([]filter.Item, 0, len(values))
		for _, name := range slices.Sorted(maps.Keys(values)) {
			f := filter.Fields{
				"id":          name,
				"name":        name,
				"value":       values[name],
				"description": settingDescriptions[name],
				"changed":     baseline[name] != values[name],
			}
			if m != nil && !m.Match(f) {
				continue
			}
			items = append(items, project(f, keys))
		}
		return &pool.Result{Success: true, Items: items}, nil
	})
}

// flattenSettings renders every preference as a display string keyed by its
// Web API name.
func flattenSettings(prefs any) (map[string]string, error) {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}

	out := make(map[string]string, len(decoded))
	for name, value := range decoded {
		out[name] = settingValue(value)
	}
	return out, nil
}

func settingValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return string(raw)
}
