package filter

// Settings is the daemon preference filter registry.
var Settings = register(NewRegistry(DomainSetting, "name",
	[]*Spec{
		allSpec(),
		boolean("changed", []string{"chg"}, "Settings that changed since the client connected",
			[]string{"changed"}, func(it Item) bool { return getBool(it, "changed") }),
	},
	[]*Spec{
		comparative("name", []string{"n"}, "Setting name", TypeString, "name"),
		comparative("value", []string{"v"}, "Current value", TypeString, "value"),
		comparative("description", []string{"desc"}, "Setting description", TypeString, "description"),
		whereSpec(),
	},
))
