package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.gallerysearch/logs, falling back to the temp dir.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".gallerysearch", "logs")
	}
	return filepath.Join(home, ".gallerysearch", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "search.log")
}
