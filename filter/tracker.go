package filter

// Tracker status names as stored under the "status" key.
const (
	TrackerDisabled     = "disabled"
	TrackerNotContacted = "not contacted"
	TrackerWorking      = "working"
	TrackerUpdating     = "updating"
	TrackerNotWorking   = "not working"
)

// Trackers is the tracker filter registry.
var Trackers = register(NewRegistry(DomainTracker, "domain",
	[]*Spec{
		allSpec(),
		boolean("working", []string{"wkg"}, "Trackers that answered the last announce",
			[]string{"status"}, func(it Item) bool { return getString(it, "status") == TrackerWorking }),
		boolean("disabled", []string{"dis"}, "Disabled trackers and pseudo entries (DHT, PeX, LSD)",
			[]string{"status"}, func(it Item) bool { return getString(it, "status") == TrackerDisabled }),
		boolean("error", []string{"err"}, "Trackers that failed or reported a message",
			[]string{"status", "message"}, func(it Item) bool {
				return getString(it, "status") == TrackerNotWorking ||
					(getString(it, "status") != TrackerDisabled && getString(it, "message") != "")
			}),
	},
	[]*Spec{
		comparative("url", nil, "Announce URL", TypeString, "url"),
		comparative("domain", []string{"dom"}, "Domain of the announce URL", TypeString, "domain"),
		comparative("tier", nil, "Tracker tier", TypeInt, "tier"),
		comparative("status", nil, "Announce status", TypeString, "status"),
		comparative("message", []string{"msg"}, "Last tracker message", TypeString, "message"),
		comparative("torrent", []string{"tor"}, "Name of the torrent", TypeString, "torrent-name"),
		comparative("seeds", []string{"sds"}, "Seeds reported by the tracker", TypeInt, "seeds"),
		comparative("leeches", []string{"lcs"}, "Leeches reported by the tracker", TypeInt, "leeches"),
		comparative("peers", nil, "Peers reported by the tracker", TypeInt, "peers"),
		comparative("downloads", []string{"dls"}, "Completed downloads reported by the tracker", TypeInt, "downloads"),
		whereSpec(),
	},
))
