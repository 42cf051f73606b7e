package filter

// qBittorrent torrent states.
const (
	StateError              = "error"
	StateMissingFiles       = "missingFiles"
	StateUploading          = "uploading"
	StatePausedUP           = "pausedUP"
	StateStoppedUP          = "stoppedUP"
	StateQueuedUP           = "queuedUP"
	StateStalledUP          = "stalledUP"
	StateCheckingUP         = "checkingUP"
	StateForcedUP           = "forcedUP"
	StateAllocating         = "allocating"
	StateDownloading        = "downloading"
	StateMetaDL             = "metaDL"
	StatePausedDL           = "pausedDL"
	StateStoppedDL          = "stoppedDL"
	StateQueuedDL           = "queuedDL"
	StateStalledDL          = "stalledDL"
	StateCheckingDL         = "checkingDL"
	StateForcedDL           = "forcedDL"
	StateCheckingResumeData = "checkingResumeData"
	StateMoving             = "moving"
)

// Torrents is the torrent filter registry.
var Torrents = register(NewRegistry(DomainTorrent, "name",
	[]*Spec{
		allSpec(),
		boolean("complete", []string{"cmp"}, "Torrents with all wanted data downloaded",
			[]string{"progress"}, func(it Item) bool { return getFloat(it, "progress") >= 100 }),
		boolean("incomplete", []string{"inc"}, "Torrents with data still missing",
			[]string{"progress"}, func(it Item) bool { return getFloat(it, "progress") < 100 }),
		boolean("stopped", []string{"stp", "paused"}, "Stopped torrents",
			[]string{"state"}, stateIn(StatePausedDL, StatePausedUP, StateStoppedDL, StateStoppedUP)),
		boolean("active", []string{"act"}, "Torrents transferring data",
			[]string{"rate-down", "rate-up"}, func(it Item) bool {
				return getFloat(it, "rate-down") > 0 || getFloat(it, "rate-up") > 0
			}),
		boolean("uploading", []string{"upg"}, "Torrents sending data",
			[]string{"rate-up"}, positive("rate-up")),
		boolean("downloading", []string{"dlg"}, "Torrents receiving data",
			[]string{"rate-down"}, positive("rate-down")),
		boolean("seeding", []string{"sdg"}, "Complete torrents offered to peers",
			[]string{"state"}, stateIn(StateUploading, StateStalledUP, StateQueuedUP, StateForcedUP)),
		boolean("checking", []string{"chk"}, "Torrents being verified",
			[]string{"state"}, stateIn(StateCheckingDL, StateCheckingUP, StateCheckingResumeData)),
		boolean("queued", []string{"que"}, "Torrents waiting in a queue",
			[]string{"state"}, stateIn(StateQueuedDL, StateQueuedUP)),
		boolean("stalled", []string{"stl"}, "Started torrents without transfer",
			[]string{"state"}, stateIn(StateStalledDL, StateStalledUP)),
		boolean("errored", []string{"err"}, "Torrents in an error state",
			[]string{"state"}, stateIn(StateError, StateMissingFiles)),
	},
	[]*Spec{
		caseless("id", []string{"hash"}, "Info hash", "id"),
		comparative("name", []string{"n"}, "Torrent name", TypeString, "name"),
		comparative("category", []string{"cat"}, "Category", TypeString, "category"),
		comparative("tag", []string{"tags"}, "Any tag of the torrent", TypeString, "tags"),
		comparative("tracker", []string{"trk"}, "Current tracker URL", TypeString, "tracker"),
		comparative("path", []string{"dir"}, "Save path", TypeString, "path"),
		comparative("state", nil, "qBittorrent state name", TypeString, "state"),
		comparative("size", []string{"sz"}, "Total size of wanted files", TypeSize, "size"),
		comparative("downloaded", []string{"dn"}, "Bytes downloaded", TypeSize, "downloaded"),
		comparative("uploaded", []string{"up"}, "Bytes uploaded", TypeSize, "uploaded"),
		comparative("ratio", []string{"rto"}, "Upload/download ratio", TypeRatio, "ratio"),
		comparative("progress", []string{"%done", "pct"}, "Download progress in percent", TypePercent, "progress"),
		comparative("rate-down", []string{"rdn"}, "Download rate", TypeRate, "rate-down"),
		comparative("rate-up", []string{"rup"}, "Upload rate", TypeRate, "rate-up"),
		comparative("seeds", []string{"sds"}, "Connected seeds", TypeInt, "seeds"),
		comparative("leeches", []string{"lcs"}, "Connected leeches", TypeInt, "leeches"),
		comparative("eta", nil, "Estimated time until complete", TypeDuration, "eta"),
		comparative("added", []string{"add"}, "Time the torrent was added", TypeTimestamp, "added"),
		comparative("completed", []string{"cpl"}, "Time the download completed", TypeTimestamp, "completed"),
		comparative("active-time", []string{"seen"}, "Total time the torrent was started", TypeDuration, "active-time"),
		whereSpec(),
	},
))
