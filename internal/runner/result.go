package runner

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Command describes one external invocation. A nil Env inherits the parent
// environment; an empty Dir inherits the working directory.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command line for logs. Arguments containing spaces or
// quotes are quoted.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Path))
	for _, a := range c.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'\\") {
		return strconv.Quote(s)
	}
	return s
}

// Result is the outcome of an invocation that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports a zero exit status.
func (r Result) Success() bool { return r.ExitCode == 0 }

// CombinedOutput returns stdout then stderr, with a newline between them
// only when both are non-empty.
func (r Result) CombinedOutput() string {
	switch {
	case r.Stdout == "":
		return r.Stderr
	case r.Stderr == "":
		return r.Stdout
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// SpawnError reports that the process could not be started at all: the
// executable is missing, not executable, or not permitted.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExecutableExists reports whether path names a regular file with at least
// one execute permission bit set.
func ExecutableExists(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0
}
