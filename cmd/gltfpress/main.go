// Command gltfpress is the CLI entrypoint for the gltfpack-driven glTF/GLB
// optimizer.
//
// It loads configuration (defaults, YAML file, .env and GLTFPRESS_*
// variables, then flags) and dispatches to the optimize, batch, inspect,
// check, presets, history and clean-temp commands.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/backmassage/gltfpress/internal/display"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Interrupts cancel the context; the running gltfpack is killed and the
	// batch stops before the next file.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(stdout, stderr).RunContext(ctx, args); err != nil {
		fmt.Fprintf(stderr, "gltfpress: %v\n", err)
		if hint := display.Suggestion(err); hint != "" {
			fmt.Fprintf(stderr, "gltfpress: %s\n", hint)
		}
		return 1
	}
	return 0
}
