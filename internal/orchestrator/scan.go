package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// ErrNoRawDirectory is returned when the raw root has no dated directory to
// ingest.
var ErrNoRawDirectory = errors.New("orchestrator: no dated directory found under raw root")

var dateDirPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// scanDir picks the directory a run should ingest: today's dated directory
// if present, otherwise the most recent dated directory under root. Extra
// entries that don't match the YYYY-MM-DD convention are ignored, per
// §6.1's tolerance for extra files.
func scanDir(root, today string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}

	var dirs []string

	for _, e := range entries {
		if e.IsDir() && dateDirPattern.MatchString(e.Name()) {
			dirs = append(dirs, e.Name())
		}
	}

	if len(dirs) == 0 {
		return "", ErrNoRawDirectory
	}

	for _, d := range dirs {
		if d == today {
			return filepath.Join(root, d), nil
		}
	}

	sort.Strings(dirs)

	return filepath.Join(root, dirs[len(dirs)-1]), nil
}
