// Package gltfpack knows the gltfpack command-line contract: it compiles an
// optimization config into arguments, locates the binary and probes it.
package gltfpack

import (
	"strconv"

	"github.com/backmassage/gltfpress/internal/preset"
)

// Build compiles cfg into the gltfpack argument list for one input/output
// pair. The result does not include the binary path. Identical inputs always
// yield identical lists.
func Build(cfg preset.Config, input, output string) []string {
	args := make([]string, 0, 20)

	// --- Input / output ---
	args = append(args, "-i", input, "-o", output)

	// --- Mesh ---
	if cfg.Mesh.Compression {
		args = append(args, "-cc")
	}
	args = append(args,
		"-vp", strconv.Itoa(cfg.Mesh.PositionBits),
		"-vt", strconv.Itoa(cfg.Mesh.TexCoordBits),
		"-vn", strconv.Itoa(cfg.Mesh.NormalBits),
	)

	// --- Texture ---
	if !cfg.Texture.Enabled {
		return args
	}
	if cfg.Texture.Format != preset.FormatNone {
		args = append(args, "-tc")
		if cfg.Texture.Format == preset.FormatUASTC {
			args = append(args, "-tu")
		}
		args = append(args, "-tq", strconv.Itoa(cfg.Texture.Quality))
	}
	if cfg.Texture.MaxDimension < preset.NoResizeLimit {
		args = append(args, "-ts", formatScale(cfg.Texture.MaxDimension))
	}
	if cfg.Texture.PowerOfTwo {
		args = append(args, "-tp")
	}
	return args
}

// formatScale renders the texture limit with one decimal place ("1024.0"),
// the form gltfpack has always been given.
func formatScale(dim int) string {
	return strconv.FormatFloat(float64(dim), 'f', 1, 64)
}
