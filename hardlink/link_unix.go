//go:build !windows

package hardlink

import (
	"fmt"
	"os"
	"syscall"
)

// Count returns the number of hard links to the file at path. Symlinks are
// not followed.
func Count(path string) (int, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file %s: %w", path, err)
	}

	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("%w: no stat data for %s", ErrUnsupported, path)
	}

	return int(stat.Nlink), nil
}
