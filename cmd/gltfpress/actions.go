package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/gltfpress/internal/check"
	"github.com/backmassage/gltfpress/internal/display"
	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/gltf"
	"github.com/backmassage/gltfpress/internal/gltfpack"
	"github.com/backmassage/gltfpress/internal/history"
	"github.com/backmassage/gltfpress/internal/naming"
	"github.com/backmassage/gltfpress/internal/pipeline"
	"github.com/backmassage/gltfpress/internal/preset"
	"github.com/backmassage/gltfpress/internal/runner"
)

func (st *state) optimize(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return failure.InvalidConfiguration("usage: gltfpress optimize <input> [output]")
	}
	oc, err := st.optimization(c)
	if err != nil {
		return err
	}
	opt, err := st.newOptimizer(c)
	if err != nil {
		return err
	}

	input := c.Args().Get(0)
	output := c.Args().Get(1)
	if output == "" {
		output = naming.SuggestedOutput(input, "", st.cfg.OutputSuffix)
		output = naming.NewCollisionResolver(!st.cfg.Overwrite).Resolve(input, output)
	} else if _, err := os.Stat(output); err == nil && !st.cfg.Overwrite {
		return failure.InvalidConfiguration(fmt.Sprintf("output %s already exists (use --force to replace it)", output))
	}
	if naming.SamePath(input, output) {
		return failure.InvalidConfiguration("output must differ from the input")
	}

	display.PrintBanner(st.stdout, version)
	if err := opt.Verify(c.Context); err != nil {
		return err
	}
	st.log.Info("Optimizing %s → %s (%s)", input, output, oc.Name)

	rec, err := opt.OptimizeOne(c.Context, input, output, oc, st.toolStream(c))
	if err != nil {
		return err
	}

	st.log.Success("Optimized %s", filepath.Base(output))
	for _, line := range display.SummaryLines(rec) {
		st.log.Info("  %s", line)
	}
	return nil
}

func (st *state) batch(c *cli.Context) error {
	if c.NArg() == 0 {
		return failure.InvalidConfiguration("usage: gltfpress batch <dir|file>...")
	}
	oc, err := st.optimization(c)
	if err != nil {
		return err
	}
	opt, err := st.newOptimizer(c)
	if err != nil {
		return err
	}

	inputs, err := st.collectInputs(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		st.log.Warn("No .glb or .gltf files found")
		return nil
	}

	outDir := c.String("out-dir")
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return failure.FromOS(err, outDir)
		}
	}
	resolver := naming.NewCollisionResolver(!st.cfg.Overwrite)
	pairs := make([]pipeline.Pair, 0, len(inputs))
	for _, in := range inputs {
		out := resolver.Resolve(in, naming.SuggestedOutput(in, outDir, st.cfg.OutputSuffix))
		pairs = append(pairs, pipeline.Pair{Input: in, Output: out})
	}

	display.PrintBanner(st.stdout, version)
	if err := opt.Verify(c.Context); err != nil {
		return err
	}
	st.log.Info("Optimizing %d files (%s)", len(pairs), oc.Name)

	recs, err := opt.OptimizeMany(c.Context, pairs, oc, pipeline.BatchProgress{
		OnItem: func(index, total int, name string) {
			st.log.Info("[%d/%d] %s", index, total, name)
		},
		OnLine: st.toolStream(c),
	})
	if err != nil {
		return err
	}

	t := pipeline.Summarize(recs)
	st.log.Success("Optimized %d files: %s → %s (saved %s) in %s",
		t.Files,
		display.FormatBytes(t.TotalInputBytes),
		display.FormatBytes(t.TotalOutputBytes),
		display.FormatBytes(t.SpaceSaved()),
		display.FormatSeconds(t.Elapsed),
	)
	return nil
}

// collectInputs expands directories into their assets and keeps explicit
// asset files, in argument order without duplicates.
func (st *state) collectInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		key := p
		if abs, err := filepath.Abs(p); err == nil {
			key = abs
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil {
			return nil, failure.FromOS(err, arg)
		}
		if fi.IsDir() {
			found, err := pipeline.Discover(arg, st.cfg.OutputSuffix)
			if err != nil {
				return nil, failure.FromOS(err, arg)
			}
			for _, p := range found {
				add(p)
			}
			continue
		}
		if !pipeline.IsAsset(arg) {
			st.log.Warn("Skipping %s: not a .glb or .gltf file", arg)
			continue
		}
		add(arg)
	}
	return out, nil
}

func (st *state) inspect(c *cli.Context) error {
	if c.NArg() == 0 {
		return failure.InvalidConfiguration("usage: gltfpress inspect <file>...")
	}
	var firstErr error
	for _, path := range c.Args().Slice() {
		s, err := gltf.Inspect(path)
		if err != nil {
			st.log.Error("%s: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(st.stdout, "%s [%s]: %s\n", path, s.Kind, s.Describe())
	}
	return firstErr
}

func (st *state) check(c *cli.Context) error {
	display.PrintBanner(st.stdout, version)
	return check.RunCheck(c.Context, st.locator(), st.engine, st.log)
}

// presetView is one entry of the presets listing.
type presetView struct {
	Name    string         `yaml:"name"`
	Preset  preset.Name    `yaml:"preset"`
	Mesh    preset.Mesh    `yaml:"mesh"`
	Texture preset.Texture `yaml:"texture"`
	Args    []string       `yaml:"args"`
}

func (st *state) presets(c *cli.Context) error {
	views := make([]presetView, 0, len(preset.Names))
	for _, n := range preset.Names {
		pc, err := preset.ForPreset(n)
		if err != nil {
			return err
		}
		if n == preset.Custom && st.cfg.Custom != nil {
			pc = *st.cfg.Custom
			pc.Name = n.DisplayName()
			pc.Preset = n
		}
		views = append(views, presetView{
			Name:    pc.Name,
			Preset:  pc.Preset,
			Mesh:    pc.Mesh,
			Texture: pc.Texture,
			Args:    gltfpack.Build(pc, "<input>", "<output>"),
		})
	}

	if c.Bool("yaml") {
		enc := yaml.NewEncoder(st.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	}

	for _, v := range views {
		cmd := runner.Command{Path: gltfpack.BinaryName, Args: v.Args}
		fmt.Fprintf(st.stdout, "%-9s %s\n  %s\n", v.Preset, v.Name, cmd)
	}
	return nil
}

func (st *state) showHistory(c *cli.Context) error {
	path := st.cfg.HistoryDB
	if c.IsSet("db") {
		path = c.String("db")
	}
	if path == "" {
		return failure.InvalidConfiguration("no history database configured (set history_db, GLTFPRESS_HISTORY_DB or --db)")
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if age := c.Duration("prune"); age > 0 {
		n, err := store.Prune(c.Context, time.Now().Add(-age))
		if err != nil {
			return err
		}
		st.log.Info("Pruned %d runs older than %s", n, age)
	}

	entries, err := store.Recent(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(st.stdout, "No runs recorded")
		return nil
	}

	fmt.Fprintf(st.stdout, "%-5s %-20s %-24s %-10s %-10s %-12s %-14s %s\n",
		"ID", "Started", "Result", "Input", "Output", "Saved", "Time", "File")
	fmt.Fprintln(st.stdout, strings.Repeat("-", 120))
	for _, e := range entries {
		started := "-"
		if !e.Record.StartTime.IsZero() {
			started = e.Record.StartTime.Local().Format("2006-01-02 15:04:05")
		}
		result := "ok"
		if !e.Success {
			result = e.FailureKind
		}
		saved := "-"
		if e.Success {
			saved = display.FormatBytesWithSign(e.Record.BytesSaved())
		}
		fmt.Fprintf(st.stdout, "%-5d %-20s %-24s %-10s %-10s %-12s %-14s %s\n",
			e.ID,
			started,
			result,
			display.FormatBytes(e.Record.InputSizeBytes),
			display.FormatBytes(e.Record.OutputSizeBytes),
			saved,
			display.FormatSeconds(e.Record.Elapsed),
			e.Record.InputPath,
		)
	}
	fmt.Fprintf(st.stdout, "\nTotal: %d runs\n", len(entries))
	return nil
}

func (st *state) cleanTemp(c *cli.Context) error {
	dir := c.String("dir")
	if dir == "" {
		dir = os.TempDir()
	}
	maxAge := st.cfg.TempMaxAge
	if c.IsSet("max-age") {
		maxAge = c.Duration("max-age")
	}
	if maxAge <= 0 {
		return failure.InvalidConfiguration("max age must be positive")
	}

	removed, err := naming.CleanupTemp(dir, maxAge, time.Now())
	for _, p := range removed {
		st.log.Debug(st.cfg.Verbose, "Removed %s", p)
	}
	if err != nil {
		return failure.FromOS(err, dir)
	}
	st.log.Success("Removed %d stale temp files from %s", len(removed), dir)
	return nil
}
