package naming

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupTemp removes .glb and .gltf files directly inside dir whose
// modification time is older than maxAge before now. Hidden files and
// subdirectories are left alone. Files that vanish or cannot be removed are
// skipped; the paths actually removed are returned.
func CleanupTemp(dir string, maxAge time.Duration, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-maxAge)
	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".glb", ".gltf":
		default:
			continue
		}

		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, err
		}
		if !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			continue
		}
		removed = append(removed, path)
	}
	return removed, nil
}
