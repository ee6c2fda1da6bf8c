package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/backmassage/gltfpress/internal/check"
	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/gltf"
	"github.com/backmassage/gltfpress/internal/gltfpack"
	"github.com/backmassage/gltfpress/internal/preset"
	"github.com/backmassage/gltfpress/internal/runner"
	"github.com/backmassage/gltfpress/internal/stats"
)

// MsgNoOutput is the report of a run that exited cleanly without writing
// its output file.
const MsgNoOutput = "output file was not created"

// Logger is the minimal logging interface needed by the pipeline.
// Defined here (rather than importing the logging package) so that tests can
// pass a recording fake.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// Observer is notified once per finished run, successful or not. On failure
// rec holds whatever was recorded before the error.
type Observer interface {
	ObserveRun(rec stats.RunStatistics, err error)
}

// Options wires an Optimizer. Locator and Log are required.
type Options struct {
	Locator   *gltfpack.Locator
	Engine    *runner.Engine // Default: runner.New().
	Log       Logger
	Verbose   bool
	OnStage   func(Stage)
	Observers []Observer
}

// Optimizer drives gltfpack for one file or a sequential batch. Only one run
// is in flight per Optimizer; concurrent calls wait their turn.
type Optimizer struct {
	mu        sync.Mutex
	locator   *gltfpack.Locator
	engine    *runner.Engine
	log       Logger
	verbose   bool
	onStage   func(Stage)
	observers []Observer

	statusMu sync.RWMutex
	status   Status
}

// New returns an idle Optimizer.
func New(opts Options) *Optimizer {
	eng := opts.Engine
	if eng == nil {
		eng = runner.New()
	}
	return &Optimizer{
		locator:   opts.Locator,
		engine:    eng,
		log:       opts.Log,
		verbose:   opts.Verbose,
		onStage:   opts.OnStage,
		observers: opts.Observers,
		status:    idleStatus(),
	}
}

// Status returns the state of the latest run.
func (o *Optimizer) Status() Status {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

func (o *Optimizer) setStatus(s Status) {
	o.statusMu.Lock()
	o.status = s
	o.statusMu.Unlock()
}

func (o *Optimizer) stage(s Stage) {
	if o.onStage != nil {
		o.onStage(s)
	}
}

// ValidateInputs checks a run request before anything is executed: the
// input must exist and be a .glb or .gltf file, the output must be named
// inside an existing directory, and cfg must be in range.
func ValidateInputs(input, output string, cfg preset.Config) error {
	if _, err := os.Stat(input); err != nil {
		return failure.FromOS(err, input)
	}
	if _, err := gltf.KindFor(input); err != nil {
		return failure.InvalidFile("input must be a .glb or .gltf file")
	}
	if strings.TrimSpace(output) == "" {
		return failure.InvalidFile("no output path specified")
	}
	dir := filepath.Dir(output)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return failure.InvalidFile(fmt.Sprintf("output directory %s does not exist", dir))
	}
	return cfg.Validate()
}

// OptimizeOne runs gltfpack on input, writing output. A non-nil onLine
// switches the engine to streaming mode and receives each complete line of
// tool output as it arrives; stdout and stderr lines are never merged.
func (o *Optimizer) OptimizeOne(ctx context.Context, input, output string, cfg preset.Config, onLine func(string)) (stats.RunStatistics, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.optimizeOne(ctx, input, output, cfg, onLine)
}

func (o *Optimizer) optimizeOne(ctx context.Context, input, output string, cfg preset.Config, onLine func(string)) (rec stats.RunStatistics, err error) {
	rec = stats.RunStatistics{InputPath: input, OutputPath: output}
	o.setStatus(processingStatus(input))
	o.stage(StageNotStarted)
	defer func() {
		if err != nil {
			o.stage(StageFailed)
			o.setStatus(failedStatus(err))
		} else {
			o.setStatus(completedStatus(rec))
		}
		for _, obs := range o.observers {
			obs.ObserveRun(rec, err)
		}
	}()

	// --- Locate binary ---
	bin, err := o.locator.Locate()
	if err != nil {
		return rec, err
	}
	o.log.Debug(o.verbose, "Using gltfpack: %s", bin)

	if err := ValidateInputs(input, output, cfg); err != nil {
		return rec, err
	}
	// The tool runs in the output's directory, so both paths must survive
	// the working directory change.
	if input, err = filepath.Abs(input); err != nil {
		return rec, failure.FromOS(err, input)
	}
	if output, err = filepath.Abs(output); err != nil {
		return rec, failure.FromOS(err, output)
	}
	o.stage(StageBinaryLocated)

	// --- Inspect (best effort) ---
	if summary, ierr := gltf.Inspect(input); ierr != nil {
		o.log.Warn("Could not inspect %s: %v", filepath.Base(input), ierr)
	} else {
		o.log.Info("Model: %s (%s)", summary.Describe(), summary.Kind)
		if summary.HasAnimations {
			o.log.Debug(o.verbose, "Animations present; gltfpack keeps them")
		}
		o.stage(StageFeatureInspected)
	}

	// --- Compile arguments ---
	started, err := stats.Start(input, output)
	if err != nil {
		return rec, err
	}
	rec = started
	cmd := runner.Command{
		Path: bin,
		Args: gltfpack.Build(cfg, input, output),
		Dir:  filepath.Dir(output),
		Env:  append(os.Environ(), "TMPDIR="+os.TempDir()),
	}
	o.log.Debug(o.verbose, "Command: %s", cmd)
	o.stage(StageArgumentsCompiled)

	// --- Run ---
	o.stage(StageProcessRunning)
	var res runner.Result
	if onLine != nil {
		lines := runner.NewLineSplitter(onLine)
		res, err = o.engine.StreamPipes(ctx, cmd, lines.Write)
		lines.Flush()
	} else {
		res, err = o.engine.Run(ctx, cmd)
	}
	if err != nil {
		return rec, classifyRunError(err, bin)
	}
	if !res.Success() {
		report := strings.TrimSpace(res.Stderr)
		if report == "" {
			report = strings.TrimSpace(res.Stdout)
		}
		return rec, failure.ExecutionFailed(report)
	}

	// --- Verify output ---
	if _, err := os.Stat(output); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rec, failure.ExecutionFailed(MsgNoOutput)
		}
		return rec, failure.FromOS(err, output)
	}
	o.stage(StageOutputVerified)

	// --- Statistics ---
	if err := rec.Finish(res.CombinedOutput()); err != nil {
		return rec, err
	}
	o.stage(StageStatsExtracted)
	o.stage(StageDone)
	return rec, nil
}

// classifyRunError maps engine errors onto the failure taxonomy. A start
// failure names the path the OS rejected, which is the working directory
// when the chdir fails and the binary otherwise.
func classifyRunError(err error, bin string) error {
	var spawn *runner.SpawnError
	if !errors.As(err, &spawn) {
		return failure.FromOS(err, bin)
	}
	path := bin
	var pe *fs.PathError
	if errors.As(spawn.Err, &pe) && pe.Path != "" {
		path = pe.Path
	}
	return failure.FromOS(spawn.Err, path)
}

// Pair is one input/output assignment of a batch.
type Pair struct {
	Input  string
	Output string
}

// BatchProgress receives batch events. OnItem is called before each item
// with a 1-based index; a non-nil OnLine receives tool output line by line.
type BatchProgress struct {
	OnItem func(index, total int, name string)
	OnLine func(string)
}

// OptimizeMany runs pairs sequentially in order. The batch is all-or-nothing:
// the first failure aborts it, no later pair is started, and the error is
// returned with nil statistics.
func (o *Optimizer) OptimizeMany(ctx context.Context, pairs []Pair, cfg preset.Config, progress BatchProgress) ([]stats.RunStatistics, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]stats.RunStatistics, 0, len(pairs))
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, failure.Cancelled(err)
		}
		if progress.OnItem != nil {
			progress.OnItem(i+1, len(pairs), filepath.Base(p.Input))
		}
		rec, err := o.optimizeOne(ctx, p.Input, p.Output, cfg, progress.OnLine)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Verify locates the binary and checks that it runs.
func (o *Optimizer) Verify(ctx context.Context) error {
	bin, err := check.CheckDeps(ctx, o.locator, o.engine)
	if err != nil {
		return err
	}
	o.log.Debug(o.verbose, "gltfpack ready: %s", bin)
	return nil
}

// Version returns the located binary's version string.
func (o *Optimizer) Version(ctx context.Context) (string, error) {
	bin, err := o.locator.Locate()
	if err != nil {
		return "", err
	}
	return gltfpack.Version(ctx, o.engine, bin), nil
}

// Info describes the located binary.
func (o *Optimizer) Info(ctx context.Context) (gltfpack.Info, error) {
	bin, err := o.locator.Locate()
	if err != nil {
		return gltfpack.Info{}, err
	}
	return gltfpack.Describe(ctx, o.engine, bin), nil
}
