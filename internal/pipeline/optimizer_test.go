package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/gltfpack"
	"github.com/backmassage/gltfpress/internal/preset"
	"github.com/backmassage/gltfpress/internal/runner"
	"github.com/backmassage/gltfpress/internal/stats"
)

// fakeGltfpack mimics the gltfpack CLI. Behaviour is keyed on the input
// basename: "bad*" fails with a stderr report, "noout*" exits 0 without
// writing, "quiet*" fails with only a stdout report. Every run appends the
// input basename to $FAKE_GLTFPACK_LOG.
const fakeGltfpack = `#!/bin/sh
case "$1" in
  --help) echo "Usage: gltfpack [options]"; exit 1 ;;
  --version) echo "gltfpack 0.21"; exit 0 ;;
esac
in=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -i) in="$2"; shift ;;
    -o) out="$2"; shift ;;
  esac
  shift
done
base=$(basename "$in")
if [ -n "$FAKE_GLTFPACK_LOG" ]; then echo "$base" >> "$FAKE_GLTFPACK_LOG"; fi
echo "cwd: $(pwd)"
case "$base" in
  bad*) echo "error: unsupported extension" >&2; exit 1 ;;
  noout*) echo "Vertices: 1"; exit 0 ;;
  quiet*) echo "stdout report"; exit 2 ;;
esac
echo "Vertices: 120"
echo "Triangles: 40"
echo "Meshes: 2"
printf 'packed' > "$out"
exit 0
`

const sampleDoc = `{"meshes":[{"primitives":[{"targets":[{}]}]}],"nodes":[{}],"animations":[{}]}`

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingLogger) add(level, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *recordingLogger) Info(f string, a ...interface{}) { r.add("INFO", f, a...) }

func (r *recordingLogger) Success(f string, a ...interface{}) { r.add("SUCCESS", f, a...) }

func (r *recordingLogger) Warn(f string, a ...interface{}) { r.add("WARN", f, a...) }

func (r *recordingLogger) Error(f string, a ...interface{}) { r.add("ERROR", f, a...) }

func (r *recordingLogger) Debug(v bool, f string, a ...interface{}) {
	if v {
		r.add("DEBUG", f, a...)
	}
}

func (r *recordingLogger) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines, "\n")
}

type recordingObserver struct {
	recs []stats.RunStatistics
	errs []error
}

func (r *recordingObserver) ObserveRun(rec stats.RunStatistics, err error) {
	r.recs = append(r.recs, rec)
	r.errs = append(r.errs, err)
}

type harness struct {
	dir     string
	bin     string
	logFile string
	log     *recordingLogger
	obs     *recordingObserver
	stages  []Stage
	opt     *Optimizer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	h := &harness{dir: t.TempDir(), log: &recordingLogger{}, obs: &recordingObserver{}}
	h.bin = filepath.Join(h.dir, "gltfpack")
	require.NoError(t, os.WriteFile(h.bin, []byte(fakeGltfpack), 0o755))
	h.logFile = filepath.Join(h.dir, "invocations.log")
	t.Setenv("FAKE_GLTFPACK_LOG", h.logFile)

	h.opt = New(Options{
		Locator:   &gltfpack.Locator{Override: h.bin},
		Log:       h.log,
		Verbose:   true,
		OnStage:   func(s Stage) { h.stages = append(h.stages, s) },
		Observers: []Observer{h.obs},
	})
	return h
}

// asset writes a .gltf (or .glb with garbage) input file under the harness dir.
func (h *harness) asset(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(h.dir, "in", name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))
	return path
}

func (h *harness) output(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(h.dir, "out")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return filepath.Join(dir, name)
}

func (h *harness) invocations(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(h.logFile)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func TestOptimizeOne_Success(t *testing.T) {
	h := newHarness(t)
	in := h.asset(t, "robot.gltf")
	out := h.output(t, "robot_optimized.gltf")

	rec, err := h.opt.OptimizeOne(context.Background(), in, out, preset.Default(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.RunID)
	assert.Equal(t, int64(len(sampleDoc)), rec.InputSizeBytes)
	assert.Equal(t, int64(len("packed")), rec.OutputSizeBytes)
	assert.Equal(t, int64(len(sampleDoc)-len("packed")), rec.BytesSaved())
	require.NotNil(t, rec.Counts.Vertices)
	assert.Equal(t, 120, *rec.Counts.Vertices)
	assert.Equal(t, 40, *rec.Counts.Triangles)
	assert.Equal(t, 2, *rec.Counts.Meshes)
	assert.Nil(t, rec.Counts.Textures)

	assert.Equal(t, []Stage{
		StageNotStarted, StageBinaryLocated, StageFeatureInspected, StageArgumentsCompiled,
		StageProcessRunning, StageOutputVerified, StageStatsExtracted, StageDone,
	}, h.stages)

	st := h.opt.Status()
	assert.True(t, st.IsCompleted())
	got, ok := st.Stats()
	assert.True(t, ok)
	assert.Equal(t, rec.RunID, got.RunID)

	require.Len(t, h.obs.errs, 1)
	assert.NoError(t, h.obs.errs[0])

	logs := h.log.joined()
	assert.Contains(t, logs, "1 animation(s) • morph targets • 1 mesh(es) • 1 node(s)")
	assert.Contains(t, logs, "Command: "+h.bin+" -i "+in)
	assert.Equal(t, []string{"robot.gltf"}, h.invocations(t))
}

func TestOptimizeOne_RunsInOutputDirWithRelativePaths(t *testing.T) {
	h := newHarness(t)
	in := h.asset(t, "robot.gltf")
	out := h.output(t, "robot_optimized.gltf")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(h.dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	relIn, _ := filepath.Rel(h.dir, in)
	relOut, _ := filepath.Rel(h.dir, out)

	var lines []string
	_, err = h.opt.OptimizeOne(context.Background(), relIn, relOut, preset.Default(), func(s string) { lines = append(lines, s) })
	require.NoError(t, err)
	assert.FileExists(t, out)

	realOut, err := filepath.EvalSymlinks(filepath.Dir(out))
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	gotCwd, err := filepath.EvalSymlinks(strings.TrimPrefix(lines[0], "cwd: "))
	require.NoError(t, err)
	assert.Equal(t, realOut, gotCwd)
}

func TestOptimizeOne_NoOutputFile(t *testing.T) {
	h := newHarness(t)
	in := h.asset(t, "noout.gltf")

	_, err := h.opt.OptimizeOne(context.Background(), in, h.output(t, "noout_optimized.gltf"), preset.Default(), nil)
	require.ErrorIs(t, err, failure.ErrExecutionFailed)
	assert.EqualError(t, err, "optimization failed: "+MsgNoOutput)

	assert.Equal(t, StageFailed, h.stages[len(h.stages)-1])
	assert.NotContains(t, h.stages, StageOutputVerified)
	st := h.opt.Status()
	assert.True(t, st.IsFailed())
	assert.ErrorIs(t, st.Err(), failure.ErrExecutionFailed)
}

func TestOptimizeOne_FailureReport(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		report string
	}{
		{"stderr preferred", "bad.gltf", "error: unsupported extension"},
		{"stdout fallback", "quiet.gltf", "stdout report"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			in := h.asset(t, tt.input)

			_, err := h.opt.OptimizeOne(context.Background(), in, h.output(t, "x.gltf"), preset.Default(), nil)
			require.ErrorIs(t, err, failure.ErrExecutionFailed)

			var fe *failure.Error
			require.ErrorAs(t, err, &fe)
			assert.Contains(t, fe.Detail, tt.report)
		})
	}
}

func TestOptimizeOne_ValidationBeforeExecution(t *testing.T) {
	h := newHarness(t)
	in := h.asset(t, "robot.gltf")
	obj := filepath.Join(h.dir, "model.obj")
	require.NoError(t, os.WriteFile(obj, []byte("v 0 0 0"), 0o644))
	badCfg := preset.Default()
	badCfg.Mesh.PositionBits = 20

	tests := []struct {
		name   string
		input  string
		output string
		cfg    preset.Config
		want   error
	}{
		{"missing input", filepath.Join(h.dir, "missing.glb"), "o.glb", preset.Default(), failure.ErrFileNotFound},
		{"wrong extension", obj, "o.glb", preset.Default(), failure.ErrInvalidFile},
		{"empty output", in, "  ", preset.Default(), failure.ErrInvalidFile},
		{"invalid config", in, "o.gltf", badCfg, failure.ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.opt.OptimizeOne(context.Background(), tt.input, tt.output, tt.cfg, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, h.invocations(t), "nothing is executed for invalid requests")
}

func TestOptimizeOne_BinaryNotFound(t *testing.T) {
	h := newHarness(t)
	h.opt.locator = &gltfpack.Locator{Override: filepath.Join(h.dir, "nope")}

	_, err := h.opt.OptimizeOne(context.Background(), h.asset(t, "robot.gltf"), h.output(t, "o.gltf"), preset.Default(), nil)
	assert.ErrorIs(t, err, failure.ErrBinaryNotFound)
	assert.Equal(t, []Stage{StageNotStarted, StageFailed}, h.stages)
}

func TestOptimizeOne_BinaryNotFoundReportedBeforeMissingInput(t *testing.T) {
	h := newHarness(t)
	h.opt.locator = &gltfpack.Locator{Override: filepath.Join(h.dir, "nope")}

	_, err := h.opt.OptimizeOne(context.Background(), filepath.Join(h.dir, "missing.glb"), h.output(t, "o.glb"), preset.Default(), nil)
	assert.ErrorIs(t, err, failure.ErrBinaryNotFound)
}

func TestOptimizeOne_MissingOutputDirectory(t *testing.T) {
	h := newHarness(t)
	in := h.asset(t, "robot.gltf")
	missing := filepath.Join(h.dir, "does-not-exist")

	_, err := h.opt.OptimizeOne(context.Background(), in, filepath.Join(missing, "robot_opt.gltf"), preset.Default(), nil)
	require.ErrorIs(t, err, failure.ErrInvalidFile)
	assert.Contains(t, err.Error(), missing)
	assert.NotContains(t, err.Error(), h.bin)
	assert.Empty(t, h.invocations(t))
}

func TestClassifyRunError_NamesRejectedPath(t *testing.T) {
	bin := "/opt/gltfpress/Binaries/gltfpack"
	tests := []struct {
		name     string
		err      error
		kind     error
		wantPath string
	}{
		{
			name:     "working directory gone",
			err:      &runner.SpawnError{Path: bin, Err: &fs.PathError{Op: "chdir", Path: "/tmp/out", Err: fs.ErrNotExist}},
			kind:     failure.ErrFileNotFound,
			wantPath: "/tmp/out",
		},
		{
			name:     "binary not permitted",
			err:      &runner.SpawnError{Path: bin, Err: &fs.PathError{Op: "fork/exec", Path: bin, Err: fs.ErrPermission}},
			kind:     failure.ErrPermissionDenied,
			wantPath: bin,
		},
		{
			name:     "no path in error",
			err:      &runner.SpawnError{Path: bin, Err: fs.ErrNotExist},
			kind:     failure.ErrFileNotFound,
			wantPath: bin,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyRunError(tt.err, bin)
			require.ErrorIs(t, err, tt.kind)
			var fe *failure.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantPath, fe.Path)
		})
	}
}

func TestOptimizeOne_InspectionFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	in := filepath.Join(h.dir, "broken.glb")
	require.NoError(t, os.WriteFile(in, []byte("not a glb at all"), 0o644))

	_, err := h.opt.OptimizeOne(context.Background(), in, h.output(t, "broken_optimized.glb"), preset.Default(), nil)
	require.NoError(t, err)
	assert.NotContains(t, h.stages, StageFeatureInspected)
	assert.Contains(t, h.log.joined(), "WARN Could not inspect broken.glb")
}

func TestOptimizeOne_StreamingDeliversBeforeResult(t *testing.T) {
	h := newHarness(t)
	in := h.asset(t, "robot.gltf")

	var chunks []string
	rec, err := h.opt.OptimizeOne(context.Background(), in, h.output(t, "r.gltf"), preset.Default(), func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, strings.Join(chunks, ""), "Vertices: 120")
	assert.Equal(t, 120, *rec.Counts.Vertices)
}

func TestOptimizeMany_SecondItemAbortsBatch(t *testing.T) {
	h := newHarness(t)
	pairs := []Pair{
		{Input: h.asset(t, "first.gltf"), Output: h.output(t, "first_o.gltf")},
		{Input: h.asset(t, "bad-second.gltf"), Output: h.output(t, "second_o.gltf")},
		{Input: h.asset(t, "third.gltf"), Output: h.output(t, "third_o.gltf")},
	}

	type item struct {
		index, total int
		name         string
	}
	var items []item
	recs, err := h.opt.OptimizeMany(context.Background(), pairs, preset.Default(), BatchProgress{
		OnItem: func(i, n int, name string) { items = append(items, item{i, n, name}) },
	})

	require.ErrorIs(t, err, failure.ErrExecutionFailed)
	assert.Contains(t, err.Error(), "unsupported extension")
	assert.Nil(t, recs)
	assert.Equal(t, []string{"first.gltf", "bad-second.gltf"}, h.invocations(t), "third item never runs")
	assert.Equal(t, []item{{1, 3, "first.gltf"}, {2, 3, "bad-second.gltf"}}, items)
	assert.NoFileExists(t, pairs[2].Output)
}

func TestOptimizeMany_AllSucceed(t *testing.T) {
	h := newHarness(t)
	var pairs []Pair
	for _, n := range []string{"a", "b", "c"} {
		pairs = append(pairs, Pair{Input: h.asset(t, n+".gltf"), Output: h.output(t, n+"_o.gltf")})
	}

	var lines int
	recs, err := h.opt.OptimizeMany(context.Background(), pairs, preset.Default(), BatchProgress{
		OnLine: func(string) { lines++ },
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, r := range recs {
		assert.Equal(t, pairs[i].Input, r.InputPath)
	}
	assert.Positive(t, lines)
	assert.Equal(t, []string{"a.gltf", "b.gltf", "c.gltf"}, h.invocations(t))
	assert.Len(t, h.obs.recs, 3)
}

func TestOptimizeMany_CancelledBeforeStart(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.opt.OptimizeMany(ctx, []Pair{{Input: h.asset(t, "a.gltf"), Output: h.output(t, "a_o.gltf")}}, preset.Default(), BatchProgress{})
	assert.ErrorIs(t, err, failure.ErrCancelled)
	assert.Empty(t, h.invocations(t))
}

func TestOptimizer_BinaryProbes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.NoError(t, h.opt.Verify(ctx))

	v, err := h.opt.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gltfpack 0.21", v)

	info, err := h.opt.Info(ctx)
	require.NoError(t, err)
	assert.True(t, info.Executable)
	assert.Equal(t, "gltfpack 0.21", info.Version)

	missing := New(Options{Locator: &gltfpack.Locator{Override: filepath.Join(h.dir, "nope")}, Log: h.log})
	assert.ErrorIs(t, missing.Verify(ctx), failure.ErrBinaryNotFound)
	assert.True(t, missing.Status().IsIdle())
}
