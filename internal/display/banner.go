package display

import (
	"fmt"
	"io"

	"github.com/backmassage/gltfpress/internal/term"
)

// PrintBanner writes the ASCII art banner; uses Magenta if colors are enabled.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Magenta)
	fmt.Fprint(w, `       _ _    __
  __ _| | |_ / _|_ __  _ __ ___  ___ ___
 / _`+"`"+` | | __| |_| '_ \| '__/ _ \/ __/ __|
| (_| | | |_|  _| |_) | | |  __/\__ \__ \
 \__, |_|\__|_| | .__/|_|  \___||___/___/
 |___/          |_|
`)
	fmt.Fprint(w, term.NC)
	fmt.Fprintf(w, " v%s\n\n", version)
}
