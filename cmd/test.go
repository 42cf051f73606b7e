package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/s0up4200/torq/filter"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connection to qBittorrent",
	Long:  `Test the connection to your qBittorrent daemon and display basic information.`,
	RunE:  runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Testing connection to qBittorrent at %s...\n", cfg.QBittorrent.URL)

	// Connection is already tested during client creation
	fmt.Fprintln(w, "✓ Connection successful!")

	res, err := client.Torrents().Fetch(cmd.Context(), nil, filter.Keys("state", "size", "rate-down", "rate-up"))
	if err != nil {
		return err
	}

	var size, down, up int64
	states := make(map[string]int)
	for _, it := range res.Items {
		size += getInt(it, "size")
		down += getInt(it, "rate-down")
		up += getInt(it, "rate-up")
		if v, ok := it.Get("state"); ok {
			states[fmt.Sprint(v)]++
		}
	}

	fmt.Fprintf(w, "\nqBittorrent Statistics:\n")
	fmt.Fprintf(w, "- Web API version: %s\n", client.Version())
	fmt.Fprintf(w, "- Total torrents: %d\n", len(res.Items))
	fmt.Fprintf(w, "- Total size: %s\n", humanize.IBytes(uint64(size)))
	fmt.Fprintf(w, "- Transfer: ↓ %s/s ↑ %s/s\n", humanize.IBytes(uint64(down)), humanize.IBytes(uint64(up)))
	for _, state := range sortedKeys(states) {
		fmt.Fprintf(w, "  • %s: %d\n", state, states[state])
	}

	return nil
}

func getInt(it filter.Item, key string) int64 {
	v, _ := it.Get(key)
	n, _ := asFloat(v)
	return int64(n)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
