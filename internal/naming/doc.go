// Package naming builds output paths for optimized assets, resolves
// duplicate output paths within a run, and removes stale temporary assets.
//
// Output paths follow <stem><suffix>.<ext> next to the input, or inside an
// explicit output directory. The extension is preserved so gltfpack writes
// the same container kind it read.
package naming
