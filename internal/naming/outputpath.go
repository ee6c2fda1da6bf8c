package naming

import (
	"path/filepath"
	"strings"
)

// SuggestedFilename returns "<stem><suffix><ext>" for input, e.g.
// "robot.glb" with "_optimized" gives "robot_optimized.glb".
func SuggestedFilename(input, suffix string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + suffix + ext
}

// SuggestedOutput returns the output path for input. An empty outputDir
// places the file next to the input.
func SuggestedOutput(input, outputDir, suffix string) string {
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, SuggestedFilename(input, suffix))
}

// SamePath reports whether a and b name the same file after cleaning and
// resolving to absolute paths.
func SamePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
