// Command forge is the thin CLI front-end over the forge module: it loads
// a demo manifest into a [forge.BuildSandbox] and drives either the
// in-process builder or the ejecting builder, mirroring the teacher's
// single-binary, flag-driven entry point (cmd/agent-sandbox/run.go).
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
)

const usageHelp = `forge - build orchestrator for a package sandbox

Usage: forge <command> [flags]

Commands:
  build   Build a manifest's root package and its dependencies in-process
  eject   Emit a portable Makefile-driven build for a manifest

Common flags:
  -m, --manifest <file>   Manifest to load (required)
  -s, --store <dir>       Content-addressed store path (default: $HOME/.forge/store)
      --sandbox <dir>     Sandbox root (default: current directory)
  -p, --parallel <n>      Max concurrent builds for "build" (default: 1)
      --dev               Human-readable logs instead of JSON
  -o, --out <dir>         Output directory for "eject" (required)
`

func main() {
	os.Exit(Run(os.Stdout, os.Stderr, os.Args))
}

// Run isolates the CLI from global state (stdout/stderr/argv) so it can be
// exercised directly by tests.
func Run(stdout, stderr io.Writer, args []string) int {
	if len(args) < 2 {
		printUsage(stdout)

		return 0
	}

	switch args[1] {
	case "build":
		return runBuild(stdout, stderr, args[2:])
	case "eject":
		return runEject(stdout, stderr, args[2:])
	case "-h", "--help", "help":
		printUsage(stdout)

		return 0
	default:
		fprintError(stderr, fmt.Errorf("unknown command %q", args[1]))
		printUsage(stderr)

		return 1
	}
}

func printUsage(out io.Writer) {
	fprintln(out, usageHelp)
}

func fprintln(out io.Writer, a ...any) {
	_, _ = fmt.Fprintln(out, a...)
}

func fprintError(out io.Writer, err error) {
	fprintln(out, "forge: error:", err)
}

func newCommonFlagSet(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {}
	flags.SetOutput(&strings.Builder{})

	flags.StringP("manifest", "m", "", "Manifest to load")
	flags.StringP("store", "s", "", "Content-addressed store path")
	flags.String("sandbox", "", "Sandbox root")
	flags.Bool("dev", false, "Human-readable logs instead of JSON")

	return flags
}
