// Package check provides system diagnostics (the check command) and
// pre-pipeline dependency validation (CheckDeps) for the gltfpack binary.
package check

import (
	"context"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/gltfpack"
	"github.com/backmassage/gltfpress/internal/runner"
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// RunCheck prints where gltfpack is looked for, which candidate was found,
// whether it runs, its version and size, and whether the temp directory is
// writable. It is informational and reports the first hard failure.
func RunCheck(ctx context.Context, loc *gltfpack.Locator, eng *runner.Engine, log Logger) error {
	log.Info("=== System Check ===")

	log.Info("gltfpack search order:")
	for i, c := range loc.Candidates() {
		mark := "missing"
		if runner.ExecutableExists(c) {
			mark = "ok"
		} else if _, err := os.Stat(c); err == nil {
			mark = "not executable"
		}
		log.Info("  %d. %s (%s)", i+1, c, mark)
	}

	path, err := loc.Locate()
	if err != nil {
		log.Error("gltfpack not found")
		return err
	}

	info := gltfpack.Describe(ctx, eng, path)
	log.Success("gltfpack: %s (%s)", info.Path, humanize.IBytes(uint64(info.SizeBytes)))
	if info.Version != "" {
		log.Info("Version: %s", info.Version)
	} else {
		log.Warn("gltfpack did not report a version")
	}

	if err := gltfpack.Verify(ctx, eng, path); err != nil {
		log.Error("gltfpack does not run: %v", err)
		return err
	}
	log.Success("gltfpack responds to --help")

	if err := checkTempDir(); err != nil {
		log.Error("Temp directory not writable: %v", err)
		return err
	}
	log.Success("Temp directory writable: %s", os.TempDir())
	return nil
}

// CheckDeps is the pre-flight validation run before any optimization: it
// locates gltfpack and makes sure it starts. Returns the resolved binary
// path.
func CheckDeps(ctx context.Context, loc *gltfpack.Locator, eng *runner.Engine) (string, error) {
	path, err := loc.Locate()
	if err != nil {
		return "", err
	}
	if err := gltfpack.Verify(ctx, eng, path); err != nil {
		return "", err
	}
	return path, nil
}

// --- internal helpers ---

// checkTempDir creates and removes a scratch directory under os.TempDir().
func checkTempDir() error {
	dir, err := os.MkdirTemp("", "gltfpress-check-*")
	if err != nil {
		return failure.FromOS(err, os.TempDir())
	}
	return os.Remove(dir)
}
