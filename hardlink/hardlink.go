// Package hardlink reports link counts of files on local disk.
package hardlink

import "errors"

// ErrUnsupported is returned where link counts cannot be read.
var ErrUnsupported = errors.New("hardlink detection not supported")

// Counter returns the link count of a path.
type Counter func(path string) (int, error)

// Cached wraps count so every path is stat'ed at most once per Counter.
func Cached(count Counter) Counter {
	seen := make(map[string]int)
	return func(path string) (int, error) {
		if n, ok := seen[path]; ok {
			return n, nil
		}
		n, err := count(path)
		if err != nil {
			return 0, err
		}
		seen[path] = n
		return n, nil
	}
}
