package logging

import (
	"os"
	"path/filepath"
	"sort"
)

// RotatedLogFiles returns the backup files for the log at path (path.1,
// path.2, ...), ordered newest first, for a status command to report on.
func RotatedLogFiles(path string) []string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > len(base)+1 && name[:len(base)+1] == base+"." {
			found = append(found, filepath.Join(dir, name))
		}
	}

	sort.Strings(found)
	return found
}
