package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CollisionResolver tracks output paths claimed by input files and resolves
// duplicates by appending "-N" to the stem. With KeepExisting set, paths
// that already exist on disk count as claimed too. All methods are
// goroutine-safe.
type CollisionResolver struct {
	KeepExisting bool

	mu       sync.Mutex
	owners   map[string]string // output path → input path that owns it
	counters map[string]int    // base output path → next dup counter
	exists   func(string) bool
}

// NewCollisionResolver creates a ready-to-use resolver. keepExisting
// protects files already on disk from being overwritten.
func NewCollisionResolver(keepExisting bool) *CollisionResolver {
	return &CollisionResolver{
		KeepExisting: keepExisting,
		owners:       make(map[string]string),
		counters:     make(map[string]int),
		exists:       fileExists,
	}
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (cr *CollisionResolver) taken(path, input string) bool {
	if owner, ok := cr.owners[path]; ok {
		return owner != input
	}
	return cr.KeepExisting && cr.exists(path)
}

// Resolve returns the final output path for input, handling collisions.
// If requestedOutput is unclaimed (or already owned by input), it is returned
// as-is. Otherwise a "-N" variant is generated, starting at 2.
func (cr *CollisionResolver) Resolve(input, requestedOutput string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if !cr.taken(requestedOutput, input) {
		cr.owners[requestedOutput] = input
		return requestedOutput
	}

	dir := filepath.Dir(requestedOutput)
	base := filepath.Base(requestedOutput)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := cr.counters[requestedOutput]
	if counter == 0 {
		counter = 2
	}

	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, counter, ext))
		if !cr.taken(candidate, input) {
			cr.counters[requestedOutput] = counter + 1
			cr.owners[candidate] = input
			return candidate
		}
		counter++
	}
}
