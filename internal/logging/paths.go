package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns $XDG_STATE_HOME/ofdb-search/logs, or
// ~/.local/state/ofdb-search/logs. Falls back to the temp directory if the
// home directory is unavailable.
func DefaultLogDir() string {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "ofdb-search", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ofdb-search", "logs")
	}
	return filepath.Join(home, ".local", "state", "ofdb-search", "logs")
}

// DefaultLogPath returns the log file used with --debug.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "ofdb-search.log")
}

// FindLogFile returns explicit if it exists, otherwise the default log path
// if that exists.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found at %s; run with --debug or set logging.file", path)
	}
	return path, nil
}
