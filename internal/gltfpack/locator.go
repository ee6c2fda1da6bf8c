package gltfpack

import (
	"os"
	"path/filepath"

	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/runner"
)

// BinaryName is the executable file name searched for in every tier.
const BinaryName = "gltfpack"

// DefaultDevPath is the development fallback, relative to the working
// directory.
var DefaultDevPath = filepath.Join("Resources", "Binaries", BinaryName)

// Locator finds the gltfpack binary. Candidates are tried in order and the
// first existing executable wins:
//
//  1. <ExeDir>/Binaries/gltfpack (packaged resources)
//  2. <ExeDir>/gltfpack          (alternate resource root)
//  3. DevPath                    (development checkout)
//
// A non-empty Override replaces the list with that single path.
type Locator struct {
	Override string
	ExeDir   string
	DevPath  string
}

// NewLocator returns a Locator rooted at the running executable's directory.
// An empty devPath selects DefaultDevPath.
func NewLocator(override, devPath string) *Locator {
	if devPath == "" {
		devPath = DefaultDevPath
	}
	l := &Locator{Override: override, DevPath: devPath}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		l.ExeDir = filepath.Dir(exe)
	}
	return l
}

// Candidates returns the paths Locate will try, in order.
func (l *Locator) Candidates() []string {
	if l.Override != "" {
		return []string{l.Override}
	}
	var out []string
	if l.ExeDir != "" {
		out = append(out,
			filepath.Join(l.ExeDir, "Binaries", BinaryName),
			filepath.Join(l.ExeDir, BinaryName),
		)
	}
	if l.DevPath != "" {
		out = append(out, l.DevPath)
	}
	return out
}

// Locate returns the first candidate that is an executable regular file, or
// failure.BinaryNotFound.
func (l *Locator) Locate() (string, error) {
	for _, p := range l.Candidates() {
		if runner.ExecutableExists(p) {
			if abs, err := filepath.Abs(p); err == nil {
				return abs, nil
			}
			return p, nil
		}
	}
	return "", failure.BinaryNotFound()
}
