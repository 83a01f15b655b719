package main

import (
	"fmt"
	"io"

	"github.com/forgebuild/forge/eject"
)

// runEject drives the ejecting builder (spec.md §4.5, component C5) over
// a manifest-loaded sandbox.
func runEject(stdout, stderr io.Writer, args []string) int {
	flags := newCommonFlagSet("forge eject")
	flags.StringP("out", "o", "", "Output directory")

	if err := flags.Parse(args); err != nil {
		fprintError(stderr, err)

		return 1
	}

	manifest, _ := flags.GetString("manifest")
	if manifest == "" {
		fprintError(stderr, fmt.Errorf("--manifest is required"))

		return 1
	}

	out, _ := flags.GetString("out")
	if out == "" {
		fprintError(stderr, fmt.Errorf("--out is required"))

		return 1
	}

	sandbox, err := LoadSandbox(manifest)
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	if err := eject.Eject(sandbox, out); err != nil {
		fprintError(stderr, err)

		return 1
	}

	fprintln(stdout, "ejected to:", out)

	return 0
}
