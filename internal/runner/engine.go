// Package runner executes external tools and captures their output, either
// collected at exit or streamed to a callback as it is produced.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const readBufferSize = 4096

// waitDelay bounds how long Wait keeps copying output after the process was
// killed, for descendants that escaped the process group.
const waitDelay = 2 * time.Second

// Pipe identifies the output stream a chunk was read from.
type Pipe int

const (
	PipeStdout Pipe = iota
	PipeStderr
)

type chunk struct {
	pipe Pipe
	data []byte
}

// Engine runs one command at a time. Concurrent calls on the same Engine are
// serialized; use separate Engines for parallel work.
type Engine struct {
	mu sync.Mutex
}

// New returns a ready Engine.
func New() *Engine { return &Engine{} }

// Run executes c and collects stdout and stderr until the process exits.
// A non-zero exit status is reported through Result.ExitCode, not as an
// error. Errors are a *SpawnError or a wrapped context error.
func (e *Engine) Run(ctx context.Context, c Command) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cmd := command(ctx, c)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := start(cmd, c); err != nil {
		return Result{}, err
	}
	waitErr := cmd.Wait()

	res := Result{
		Stdout: strings.ToValidUTF8(stdout.String(), ""),
		Stderr: strings.ToValidUTF8(stderr.String(), ""),
	}
	return finish(ctx, cmd, res, waitErr)
}

// Stream executes c and invokes onChunk, on the calling goroutine, for each
// piece of output as it arrives from either stream. The full per-stream text
// is also accumulated into the returned Result. onChunk is never called after
// Stream returns. A nil onChunk behaves like Run.
func (e *Engine) Stream(ctx context.Context, c Command, onChunk func(string)) (Result, error) {
	if onChunk == nil {
		return e.StreamPipes(ctx, c, nil)
	}
	return e.StreamPipes(ctx, c, func(_ Pipe, text string) { onChunk(text) })
}

// StreamPipes is Stream with the originating pipe passed to onChunk, for
// callers that keep stdout and stderr apart.
func (e *Engine) StreamPipes(ctx context.Context, c Command, onChunk func(Pipe, string)) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cmd := command(ctx, c)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := start(cmd, c); err != nil {
		stdout.Close()
		stderr.Close()
		return Result{}, err
	}

	// A descendant holding the pipes open must not keep the readers alive
	// once the run is cancelled.
	stop := context.AfterFunc(ctx, func() {
		stdout.Close()
		stderr.Close()
	})
	defer stop()

	chunks := make(chan chunk, 16)
	var g errgroup.Group
	g.Go(func() error { return pump(stdout, PipeStdout, chunks) })
	g.Go(func() error { return pump(stderr, PipeStderr, chunks) })

	var readErr error
	go func() {
		readErr = g.Wait()
		close(chunks)
	}()

	var outBuf, errBuf strings.Builder
	decoders := [2]decoder{}
	for ch := range chunks {
		text := decoders[ch.pipe].decode(ch.data)
		if text == "" {
			continue
		}
		if ch.pipe == PipeStdout {
			outBuf.WriteString(text)
		} else {
			errBuf.WriteString(text)
		}
		if onChunk != nil {
			onChunk(ch.pipe, text)
		}
	}
	// Both pipes reached EOF; Wait can now reap the process without racing
	// the readers.
	waitErr := cmd.Wait()

	for id, d := range decoders {
		if tail := d.flush(); tail != "" {
			if Pipe(id) == PipeStdout {
				outBuf.WriteString(tail)
			} else {
				errBuf.WriteString(tail)
			}
			if onChunk != nil {
				onChunk(Pipe(id), tail)
			}
		}
	}

	res := Result{Stdout: outBuf.String(), Stderr: errBuf.String()}
	if readErr != nil && ctx.Err() == nil {
		return res, fmt.Errorf("read output: %w", readErr)
	}
	return finish(ctx, cmd, res, waitErr)
}

func command(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)
	return cmd
}

// start launches cmd. A missing working directory is reported as a chdir
// error on that directory; the OS would otherwise blame the executable.
func start(cmd *exec.Cmd, c Command) error {
	if c.Dir != "" {
		if _, err := os.Stat(c.Dir); err != nil {
			var pe *fs.PathError
			if errors.As(err, &pe) {
				pe.Op = "chdir"
			}
			return &SpawnError{Path: c.Path, Err: err}
		}
	}
	if err := cmd.Start(); err != nil {
		return &SpawnError{Path: c.Path, Err: err}
	}
	return nil
}

// finish turns the Wait outcome into the exit code and the returned error.
func finish(ctx context.Context, cmd *exec.Cmd, res Result, waitErr error) (Result, error) {
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%s interrupted: %w", cmd.Path, err)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return res, nil
		}
		return res, fmt.Errorf("wait for %s: %w", cmd.Path, waitErr)
	}
	return res, nil
}

// pump copies r onto out until EOF. Each send carries its own buffer.
func pump(r io.Reader, p Pipe, out chan<- chunk) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			out <- chunk{pipe: p, data: data}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// decoder converts a byte stream to valid UTF-8 text. A multi-byte sequence
// split across reads is held back until the rest arrives; invalid bytes are
// dropped.
type decoder struct {
	pending []byte
}

func (d *decoder) decode(p []byte) string {
	data := append(d.pending, p...)
	d.pending = nil

	cut := len(data)
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(data) {
		d.pending = append([]byte(nil), data[cut:]...)
	}
	return strings.ToValidUTF8(string(data[:cut]), "")
}

func (d *decoder) flush() string {
	text := strings.ToValidUTF8(string(d.pending), "")
	d.pending = nil
	return text
}
