package sorter

import (
	"cmp"
	"strings"
	"time"

	"github.com/s0up4200/torq/filter"
)

func byString(key string) func(a, b filter.Item) int {
	return func(a, b filter.Item) int {
		return strings.Compare(strings.ToLower(str(a, key)), strings.ToLower(str(b, key)))
	}
}

func byNumber(key string) func(a, b filter.Item) int {
	return func(a, b filter.Item) int {
		return cmp.Compare(num(a, key), num(b, key))
	}
}

func byTime(key string) func(a, b filter.Item) int {
	return func(a, b filter.Item) int {
		return cmp.Compare(unix(a, key), unix(b, key))
	}
}

func str(it filter.Item, key string) string {
	v, _ := it.Get(key)
	s, _ := v.(string)
	return s
}

func num(it filter.Item, key string) float64 {
	v, _ := it.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case time.Duration:
		return float64(n)
	}
	return 0
}

func unix(it filter.Item, key string) int64 {
	v, _ := it.Get(key)
	t, _ := v.(time.Time)
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func spec(name string, aliases []string, desc string, key string, compare func(string) func(a, b filter.Item) int) *Spec {
	return &Spec{Name: name, Aliases: aliases, Description: desc, NeededKeys: []string{key}, Compare: compare(key)}
}

// Torrents is the torrent sort registry.
var Torrents = register(NewRegistry(filter.DomainTorrent, "name",
	spec("name", []string{"n"}, "Torrent name", "name", byString),
	spec("size", []string{"sz"}, "Total size", "size", byNumber),
	spec("progress", []string{"%done", "pct"}, "Download progress", "progress", byNumber),
	spec("ratio", []string{"rto"}, "Upload/download ratio", "ratio", byNumber),
	spec("rate-down", []string{"rdn"}, "Download rate", "rate-down", byNumber),
	spec("rate-up", []string{"rup"}, "Upload rate", "rate-up", byNumber),
	spec("eta", nil, "Estimated time until complete", "eta", byNumber),
	spec("added", []string{"add"}, "Time added", "added", byTime),
	spec("completed", []string{"cpl"}, "Time completed", "completed", byTime),
	spec("seeds", []string{"sds"}, "Connected seeds", "seeds", byNumber),
	spec("leeches", []string{"lcs"}, "Connected leeches", "leeches", byNumber),
	spec("state", nil, "qBittorrent state", "state", byString),
	spec("category", []string{"cat"}, "Category", "category", byString),
	spec("tracker", []string{"trk"}, "Tracker URL", "tracker", byString),
))

// Files is the file sort registry.
var Files = register(NewRegistry(filter.DomainFile, "name",
	spec("name", []string{"n"}, "File name", "name", byString),
	spec("size", []string{"sz"}, "File size", "size", byNumber),
	spec("progress", []string{"%done", "pct"}, "Download progress", "progress", byNumber),
	spec("priority", []string{"prio"}, "Download priority", "priority", byNumber),
	spec("path", []string{"dir"}, "Path inside the torrent", "path", byString),
))

// Peers is the peer sort registry.
var Peers = register(NewRegistry(filter.DomainPeer, "host",
	spec("host", []string{"ip"}, "Peer address", "host", byString),
	spec("port", nil, "Peer port", "port", byNumber),
	spec("client", []string{"cl"}, "Peer client", "client", byString),
	spec("country", []string{"cn"}, "Peer country", "country", byString),
	spec("progress", []string{"%done", "pct"}, "Peer progress", "progress", byNumber),
	spec("rate-down", []string{"rdn"}, "Download rate", "rate-down", byNumber),
	spec("rate-up", []string{"rup"}, "Upload rate", "rate-up", byNumber),
))

// Trackers is the tracker sort registry.
var Trackers = register(NewRegistry(filter.DomainTracker, "tier",
	spec("tier", nil, "Tracker tier", "tier", byNumber),
	spec("domain", []string{"dom"}, "Announce domain", "domain", byString),
	spec("status", nil, "Announce status", "status", byString),
	spec("seeds", []string{"sds"}, "Seeds reported", "seeds", byNumber),
	spec("leeches", []string{"lcs"}, "Leeches reported", "leeches", byNumber),
))

// Settings is the setting sort registry.
var Settings = register(NewRegistry(filter.DomainSetting, "name",
	spec("name", []string{"n"}, "Setting name", "name", byString),
	spec("value", []string{"v"}, "Current value", "value", byString),
))

var registries = map[filter.Domain]*Registry{}

func register(r *Registry) *Registry {
	registries[r.Domain] = r
	return r
}

// ForDomain returns the sort registry of a domain.
func ForDomain(d filter.Domain) (*Registry, bool) {
	r, ok := registries[d]
	return r, ok
}
