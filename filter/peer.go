package filter

// Peers is the peer filter registry.
var Peers = register(NewRegistry(DomainPeer, "host",
	[]*Spec{
		allSpec(),
		boolean("uploading", []string{"upg"}, "Peers we send data to",
			[]string{"rate-up"}, positive("rate-up")),
		boolean("downloading", []string{"dlg"}, "Peers we receive data from",
			[]string{"rate-down"}, positive("rate-down")),
		boolean("seeding", []string{"sdg"}, "Peers that have the complete torrent",
			[]string{"progress"}, func(it Item) bool { return getFloat(it, "progress") >= 100 }),
	},
	[]*Spec{
		comparative("host", []string{"ip"}, "Peer address", TypeString, "host"),
		comparative("port", nil, "Peer port", TypeInt, "port"),
		comparative("client", []string{"cl"}, "Peer client software", TypeString, "client"),
		comparative("country", []string{"cn"}, "Peer country", TypeString, "country"),
		comparative("torrent", []string{"tor"}, "Name of the torrent", TypeString, "torrent-name"),
		comparative("progress", []string{"%done", "pct"}, "Peer download progress in percent", TypePercent, "progress"),
		comparative("rate-down", []string{"rdn"}, "Download rate from the peer", TypeRate, "rate-down"),
		comparative("rate-up", []string{"rup"}, "Upload rate to the peer", TypeRate, "rate-up"),
		whereSpec(),
	},
))
