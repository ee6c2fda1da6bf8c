package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Supported asset extensions (lowercase, with leading dot).
var assetExtensions = map[string]bool{
	".glb":  true,
	".gltf": true,
}

// IsAsset reports whether path has a glTF extension.
func IsAsset(path string) bool {
	return assetExtensions[strings.ToLower(filepath.Ext(path))]
}

// Discover walks dir and collects glTF assets, sorted lexicographically for
// deterministic processing order. Files whose stem already ends with
// skipSuffix (previous outputs) and hidden directories are skipped.
func Discover(dir, skipSuffix string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsAsset(path) {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if skipSuffix != "" && strings.HasSuffix(stem, skipSuffix) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
