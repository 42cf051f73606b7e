package filter

// Files is the torrent file filter registry.
var Files = register(NewRegistry(DomainFile, "name",
	[]*Spec{
		allSpec(),
		boolean("complete", []string{"cmp"}, "Fully downloaded files",
			[]string{"progress"}, func(it Item) bool { return getFloat(it, "progress") >= 100 }),
		boolean("incomplete", []string{"inc"}, "Partially downloaded files",
			[]string{"progress"}, func(it Item) bool { return getFloat(it, "progress") < 100 }),
		boolean("wanted", []string{"wtd"}, "Files selected for download",
			[]string{"priority"}, positive("priority")),
		boolean("unwanted", []string{"uwtd", "skipped"}, "Files excluded from download",
			[]string{"priority"}, func(it Item) bool { return getFloat(it, "priority") == 0 }),
		boolean("hardlinked", []string{"hl"}, "Files with more than one hard link on disk",
			[]string{"links"}, func(it Item) bool { return getFloat(it, "links") > 1 }),
	},
	[]*Spec{
		comparative("name", []string{"n"}, "File name", TypeString, "name"),
		comparative("path", []string{"dir"}, "Path inside the torrent", TypeString, "path"),
		comparative("torrent", []string{"tor"}, "Name of the owning torrent", TypeString, "torrent-name"),
		comparative("size", []string{"sz"}, "File size", TypeSize, "size"),
		comparative("progress", []string{"%done", "pct"}, "Download progress in percent", TypePercent, "progress"),
		comparative("priority", []string{"prio"}, "Download priority (0 skip, 1 normal, 6 high, 7 max)", TypeInt, "priority"),
		comparative("links", []string{"nlink"}, "Number of hard links on disk", TypeInt, "links"),
		whereSpec(),
	},
))
