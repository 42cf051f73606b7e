//go:build windows

package hardlink

// Count returns the number of hard links to the file at path.
// Windows implementation - not supported
func Count(path string) (int, error) {
	return 0, ErrUnsupported
}
