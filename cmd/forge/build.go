package main

import (
	"context"
	"fmt"
	"io"

	"github.com/forgebuild/forge/builder"
	"github.com/forgebuild/forge/forgelog"
	"github.com/forgebuild/forge/pathscheme"
)

// runBuild drives the in-process builder (spec.md §4.4, component C4)
// over a manifest-loaded sandbox.
func runBuild(stdout, stderr io.Writer, args []string) int {
	flags := newCommonFlagSet("forge build")
	flags.IntP("parallel", "p", 1, "Max concurrent builds")

	if err := flags.Parse(args); err != nil {
		fprintError(stderr, err)

		return 1
	}

	manifest, _ := flags.GetString("manifest")
	if manifest == "" {
		fprintError(stderr, fmt.Errorf("--manifest is required"))

		return 1
	}

	cfg, err := DefaultRunConfig()
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	if err := applyCLIOverrides(&cfg, flags); err != nil {
		fprintError(stderr, err)

		return 1
	}

	sandbox, err := LoadSandbox(manifest)
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	log := forgelog.New("build", cfg.Dev)

	b := builder.New(pathscheme.Config{StorePath: cfg.StorePath, SandboxPath: cfg.SandboxPath}, log)

	ctx := context.Background()

	if cfg.Parallel > 1 {
		err = b.BuildAllParallel(ctx, sandbox, cfg.Parallel)
	} else {
		err = b.BuildAll(ctx, sandbox)
	}

	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	fprintln(stdout, "build complete:", sandbox.Root.String())

	return 0
}
