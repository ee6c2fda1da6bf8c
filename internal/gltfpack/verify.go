package gltfpack

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/runner"
)

// Info describes a located binary.
type Info struct {
	Path       string
	Executable bool
	SizeBytes  int64
	Version    string
}

// Verify runs the binary with --help. The binary is usable when it starts
// and prints anything; gltfpack exits non-zero from --help on some builds,
// so the exit status is ignored.
func Verify(ctx context.Context, eng *runner.Engine, path string) error {
	res, err := eng.Run(ctx, runner.Command{Path: path, Args: []string{"--help"}})
	if err != nil {
		var spawn *runner.SpawnError
		if errors.As(err, &spawn) {
			return &failure.Error{Kind: failure.KindBinaryExecutionFailed, Detail: spawn.Error(), Err: err}
		}
		return failure.FromOS(err, path)
	}
	if strings.TrimSpace(res.CombinedOutput()) == "" {
		return failure.BinaryExecutionFailed("no output from --help")
	}
	return nil
}

// Version returns the trimmed --version output, or "" when the binary cannot
// be run. The exit status is ignored; some builds exit non-zero here too.
func Version(ctx context.Context, eng *runner.Engine, path string) string {
	res, err := eng.Run(ctx, runner.Command{Path: path, Args: []string{"--version"}})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

// Describe gathers path, permission, size and version of the binary.
func Describe(ctx context.Context, eng *runner.Engine, path string) Info {
	info := Info{Path: path, Executable: runner.ExecutableExists(path)}
	if fi, err := os.Stat(path); err == nil {
		info.SizeBytes = fi.Size()
	}
	if info.Executable {
		info.Version = Version(ctx, eng, path)
	}
	return info
}
