package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/backmassage/gltfpress/internal/config"
	"github.com/backmassage/gltfpress/internal/failure"
	"github.com/backmassage/gltfpress/internal/gltfpack"
	"github.com/backmassage/gltfpress/internal/history"
	"github.com/backmassage/gltfpress/internal/logging"
	"github.com/backmassage/gltfpress/internal/metrics"
	"github.com/backmassage/gltfpress/internal/pipeline"
	"github.com/backmassage/gltfpress/internal/preset"
	"github.com/backmassage/gltfpress/internal/runner"
)

// state is shared by every command of one invocation. setup fills cfg and
// log before any action runs; teardown flushes and closes what the actions
// opened.
type state struct {
	stdout io.Writer
	stderr io.Writer

	cfg     config.Config
	log     *logging.Logger
	engine  *runner.Engine
	metrics *metrics.Collector
	history *history.Store
}

func init() {
	// -v is taken by --verbose.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	st := &state{stdout: stdout, stderr: stderr, engine: runner.New()}

	return &cli.App{
		Name:      "gltfpress",
		Usage:     "optimize glTF and GLB assets with gltfpack",
		Version:   fmt.Sprintf("%s (%s)", version, commit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "gltfpack", Usage: "gltfpack binary (replaces the search order)"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Usage: "append log lines to this file"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug output, including the gltfpack command line"},
			&cli.StringFlag{Name: "color", Usage: "auto, always or never"},
			&cli.BoolFlag{Name: "no-color", Usage: "same as --color=never"},
		},
		Before: st.setup,
		After:  st.teardown,
		Commands: []*cli.Command{
			{
				Name:      "optimize",
				Usage:     "optimize one asset",
				ArgsUsage: "<input> [output]",
				Flags:     optimizationFlags(),
				Action:    st.optimize,
			},
			{
				Name:      "batch",
				Usage:     "optimize every asset in directories or a file list, stopping at the first failure",
				ArgsUsage: "<dir|file>...",
				Flags: append(optimizationFlags(),
					&cli.StringFlag{Name: "out-dir", Aliases: []string{"o"}, Usage: "write outputs here instead of next to each input"},
				),
				Action: st.batch,
			},
			{
				Name:      "inspect",
				Usage:     "print the feature summary of assets",
				ArgsUsage: "<file>...",
				Action:    st.inspect,
			},
			{
				Name:   "check",
				Usage:  "locate and verify the gltfpack binary",
				Action: st.check,
			},
			{
				Name:  "presets",
				Usage: "list presets and the gltfpack arguments they compile to",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yaml", Usage: "print as YAML"},
				},
				Action: st.presets,
			},
			{
				Name:  "history",
				Usage: "list recent runs from the history database",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "history database (default: history_db from config)"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "number of runs to show (0 for all)"},
					&cli.DurationFlag{Name: "prune", Usage: "first delete runs older than this age"},
				},
				Action: st.showHistory,
			},
			{
				Name:  "clean-temp",
				Usage: "remove stale .glb/.gltf files from the temp directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "directory to clean (default: system temp dir)"},
					&cli.DurationFlag{Name: "max-age", Usage: "remove files older than this (default: temp_max_age from config)"},
				},
				Action: st.cleanTemp,
			},
		},
	}
}

func optimizationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "preset", Aliases: []string{"p"}, Usage: "low, balanced, high or custom"},
		&cli.BoolFlag{Name: "mesh-compression", Usage: "compress vertex data (--mesh-compression=false to disable)"},
		&cli.IntFlag{Name: "position-bits", Usage: "position quantization bits (8-16)"},
		&cli.IntFlag{Name: "texcoord-bits", Usage: "texture coordinate quantization bits (8-16)"},
		&cli.IntFlag{Name: "normal-bits", Usage: "normal quantization bits (8-16)"},
		&cli.BoolFlag{Name: "textures", Usage: "process textures (--textures=false to leave them alone)"},
		&cli.StringFlag{Name: "texture-format", Usage: "etc1s, uastc or none"},
		&cli.IntFlag{Name: "texture-quality", Usage: "texture quality (1-255)"},
		&cli.IntFlag{Name: "max-texture-size", Usage: "256, 512, 1024, 2048, or 4096 for no limit"},
		&cli.BoolFlag{Name: "power-of-two", Usage: "round texture dimensions to powers of two"},
		&cli.StringFlag{Name: "suffix", Usage: `output name suffix (default "_optimized")`},
		&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "replace existing outputs instead of picking a free name"},
		&cli.BoolFlag{Name: "stream", Value: true, Usage: "print gltfpack output as it arrives"},
		&cli.StringFlag{Name: "history", Usage: "record runs in this SQLite database"},
		&cli.StringFlag{Name: "metrics-file", Usage: "write Prometheus metrics to this textfile"},
	}
}

// setup builds the configuration (defaults, YAML, .env and environment,
// then global flags) and the logger.
func (st *state) setup(c *cli.Context) error {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		if err := config.LoadFile(&cfg, path); err != nil {
			return failure.InvalidConfiguration(err.Error())
		}
	}
	if err := config.LoadEnv(&cfg, ".env"); err != nil {
		return failure.InvalidConfiguration(err.Error())
	}

	if c.IsSet("gltfpack") {
		cfg.GltfpackPath = c.String("gltfpack")
	}
	if c.IsSet("log") {
		cfg.LogFile = c.String("log")
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}
	if c.IsSet("color") {
		cfg.ColorMode = config.ColorMode(strings.ToLower(c.String("color")))
	}
	if c.Bool("no-color") {
		cfg.ColorMode = config.ColorNever
	}
	if err := cfg.Validate(); err != nil {
		return failure.InvalidConfiguration(err.Error())
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		return failure.FromOS(err, cfg.LogFile)
	}
	log.SetOutput(st.stdout, st.stderr)
	st.cfg = cfg
	st.log = log
	return nil
}

func (st *state) teardown(*cli.Context) error {
	var errs []error
	if st.metrics != nil {
		if err := st.metrics.WriteTextfile(st.cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		} else {
			st.log.Debug(st.cfg.Verbose, "Metrics written to %s", st.cfg.MetricsFile)
		}
	}
	if st.history != nil {
		errs = append(errs, st.history.Close())
	}
	if st.log != nil {
		errs = append(errs, st.log.Close())
	}
	return errors.Join(errs...)
}

func (st *state) locator() *gltfpack.Locator {
	return gltfpack.NewLocator(st.cfg.GltfpackPath, st.cfg.DevBinaryPath)
}

// optimization resolves the preset chosen by config or --preset and applies
// the per-field overrides. Any override turns the result into a custom
// configuration.
func (st *state) optimization(c *cli.Context) (preset.Config, error) {
	if c.IsSet("preset") {
		name, err := preset.ParseName(c.String("preset"))
		if err != nil {
			return preset.Config{}, failure.InvalidConfiguration(err.Error())
		}
		st.cfg.Preset = name
	}
	oc, err := st.cfg.Optimization()
	if err != nil {
		return preset.Config{}, err
	}

	overridden := false
	set := func(name string) bool {
		if c.IsSet(name) {
			overridden = true
			return true
		}
		return false
	}
	if set("mesh-compression") {
		oc.Mesh.Compression = c.Bool("mesh-compression")
	}
	if set("position-bits") {
		oc.Mesh.PositionBits = c.Int("position-bits")
	}
	if set("texcoord-bits") {
		oc.Mesh.TexCoordBits = c.Int("texcoord-bits")
	}
	if set("normal-bits") {
		oc.Mesh.NormalBits = c.Int("normal-bits")
	}
	if set("textures") {
		oc.Texture.Enabled = c.Bool("textures")
	}
	if set("texture-format") {
		f, err := preset.ParseTextureFormat(c.String("texture-format"))
		if err != nil {
			return preset.Config{}, failure.InvalidConfiguration(err.Error())
		}
		oc.Texture.Format = f
	}
	if set("texture-quality") {
		oc.Texture.Quality = c.Int("texture-quality")
	}
	if set("max-texture-size") {
		oc.Texture.MaxDimension = c.Int("max-texture-size")
	}
	if set("power-of-two") {
		oc.Texture.PowerOfTwo = c.Bool("power-of-two")
	}
	if overridden {
		oc.Name = preset.Custom.DisplayName()
		oc.Preset = preset.Custom
	}
	if err := oc.Validate(); err != nil {
		return preset.Config{}, err
	}
	return oc, nil
}

// newOptimizer applies the run flags and wires the history and metrics
// observers they enable.
func (st *state) newOptimizer(c *cli.Context) (*pipeline.Optimizer, error) {
	if c.IsSet("suffix") {
		st.cfg.OutputSuffix = c.String("suffix")
	}
	if c.Bool("force") {
		st.cfg.Overwrite = true
	}
	if c.IsSet("history") {
		st.cfg.HistoryDB = c.String("history")
	}
	if c.IsSet("metrics-file") {
		st.cfg.MetricsFile = c.String("metrics-file")
	}
	if st.cfg.OutputSuffix == "" && !st.cfg.Overwrite {
		return nil, failure.InvalidConfiguration("output suffix must not be empty")
	}

	var observers []pipeline.Observer
	if st.cfg.HistoryDB != "" {
		store, err := history.Open(st.cfg.HistoryDB)
		if err != nil {
			st.log.Warn("History disabled: %v", err)
		} else {
			st.history = store
			observers = append(observers, history.Recorder{Store: store, Log: st.log})
		}
	}
	if st.cfg.MetricsFile != "" {
		st.metrics = metrics.New()
		observers = append(observers, st.metrics)
	}

	return pipeline.New(pipeline.Options{
		Locator:   st.locator(),
		Engine:    st.engine,
		Log:       st.log,
		Verbose:   st.cfg.Verbose,
		OnStage:   func(s pipeline.Stage) { st.log.Debug(st.cfg.Verbose, "Stage: %s", s) },
		Observers: observers,
	}), nil
}

// toolStream returns the line callback for gltfpack output, or nil when
// --stream is off.
func (st *state) toolStream(c *cli.Context) func(string) {
	if !c.Bool("stream") {
		return nil
	}
	return func(line string) { st.log.Tool("%s", line) }
}
