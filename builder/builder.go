// Package builder implements the in-process builder (spec.md §4.4,
// component C4): it executes performBuild directly in dependency order,
// one Build at a time ([Builder.BuildAll]) or with bounded parallelism
// ([Builder.BuildAllParallel]).
//
// The pipeline shape — validate once up front, then plan/stage/execute per
// unit of work — follows the teacher's own Command() method
// (sandbox/command.go): look up an external tool, build an argv, set Env,
// and run, with every I/O step individually wrapped and attributable.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/forgebuild/forge"
	"github.com/forgebuild/forge/buildenv"
	"github.com/forgebuild/forge/graph"
	"github.com/forgebuild/forge/pathscheme"
)

// Builder drives performBuild over a [forge.BuildSandbox].
type Builder struct {
	Config pathscheme.Config

	// Log receives progress entries. It must be non-nil; [New] substitutes a
	// discarding logger when given nil.
	Log *logrus.Entry
}

// New constructs a Builder over cfg. If log is nil, progress entries are
// discarded (matching logrus's own default of a silently-constructed
// *logrus.Logger being usable as zero value).
func New(cfg pathscheme.Config, log *logrus.Entry) *Builder {
	if log == nil {
		l := logrus.New()
		l.Out = bytes.NewBuffer(nil)
		log = logrus.NewEntry(l)
	}

	return &Builder{Config: cfg, Log: log}
}

// EnsureStoreSkeletons creates the _build/_insttmp/_install subtrees under
// both the shared store and the sandbox-local store (spec.md §4.4 step 1).
func (bd *Builder) EnsureStoreSkeletons() error {
	for _, base := range []string{bd.Config.StorePath, filepath.Join(bd.Config.SandboxPath, "_esy", "store")} {
		for _, dir := range pathscheme.StoreSkeletonDirs(base) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return forge.NewIOFailure("mkdir", dir, err)
			}
		}
	}

	return nil
}

// checkExportConflicts composes every reachable build's environment up
// front, surfacing an [forge.ExportConflict] before any store skeleton is
// created or any command runs. spec.md §8 seed scenario 4 requires that a
// conflict abort the whole operation with no commands executed; composing
// lazily inside performBuild would let an already-built dependency's
// commands run before a clash detected only once its consumer composes its
// own environment.
func (bd *Builder) checkExportConflicts(sandbox *forge.BuildSandbox) error {
	for _, b := range graph.PostOrderDFS(sandbox.Root) {
		if _, err := buildenv.Compose(bd.Config, b, sandbox.Env); err != nil {
			return err
		}
	}

	return nil
}

// BuildAll validates sandbox.Root, ensures store skeletons exist, then walks
// the graph in post-order DFS, building each node sequentially — the
// reference behavior (spec.md §4.4 step 2, §5).
func (bd *Builder) BuildAll(ctx context.Context, sandbox *forge.BuildSandbox) error {
	if err := forge.ValidateGraph(sandbox.Root); err != nil {
		return err
	}

	if err := bd.checkExportConflicts(sandbox); err != nil {
		return err
	}

	if err := bd.EnsureStoreSkeletons(); err != nil {
		return err
	}

	for _, b := range graph.PostOrderDFS(sandbox.Root) {
		if err := bd.performBuild(ctx, b, sandbox.Env); err != nil {
			return fmt.Errorf("building %s: %w", b, err)
		}
	}

	return nil
}

// BuildAllParallel is the bounded-parallel variant spec.md §5/§9 allows:
// builds release to a pool of n workers as soon as every dependency's
// FinalInstall exists, preserving the same partial order as [BuildAll]. It
// is not the reference behavior; callers needing byte-for-byte ordering
// guarantees beyond "dependencies finish first" should use BuildAll.
func (bd *Builder) BuildAllParallel(ctx context.Context, sandbox *forge.BuildSandbox, n int) error {
	if err := forge.ValidateGraph(sandbox.Root); err != nil {
		return err
	}

	if err := bd.checkExportConflicts(sandbox); err != nil {
		return err
	}

	if err := bd.EnsureStoreSkeletons(); err != nil {
		return err
	}

	if n < 1 {
		n = 1
	}

	order := graph.PostOrderDFS(sandbox.Root)

	done := make(map[string]chan struct{}, len(order))
	for _, b := range order {
		done[string(b.ID)] = make(chan struct{})
	}

	sem := make(chan struct{}, n)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, b := range order {
		b := b

		wg.Add(1)

		go func() {
			defer wg.Done()

			for _, dep := range b.Dependencies {
				<-done[string(dep.ID)]
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()

			if !failed {
				if err := bd.performBuild(ctx, b, sandbox.Env); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("building %s: %w", b, err)
					}
					mu.Unlock()
				}
			}

			close(done[string(b.ID)])
		}()
	}

	wg.Wait()

	return firstErr
}

// performBuild executes spec.md §4.4 steps 1–9 for a single build.
func (bd *Builder) performBuild(ctx context.Context, b *forge.Build, sandboxEnv []forge.EnvVar) error {
	log := bd.Log.WithField("build", b.String())

	// Step 1: cache check.
	if b.ShouldBePersisted {
		if info, err := os.Stat(bd.Config.FinalInstall(b)); err == nil && info.IsDir() {
			log.Debug("cache hit, skipping")

			return nil
		}
	}

	// Step 2: clean staging.
	for _, dir := range []string{bd.Config.FinalInstall(b), bd.Config.Install(b), bd.Config.Build(b)} {
		if err := os.RemoveAll(dir); err != nil {
			return forge.NewIOFailure("clean", dir, err)
		}
	}

	// Step 3: create skeletons.
	if err := os.MkdirAll(filepath.Join(bd.Config.Build(b), "_esy"), 0o755); err != nil {
		return forge.NewIOFailure("mkdir", bd.Config.Build(b, "_esy"), err)
	}

	for _, sub := range pathscheme.InstallSubdirs {
		dir := bd.Config.Install(b, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return forge.NewIOFailure("mkdir", dir, err)
		}
	}

	// Step 4: source staging.
	if b.MutatesSourcePath {
		if err := copyTree(bd.Config.Source(b), bd.Config.Build(b)); err != nil {
			return forge.NewIOFailure("stage source", bd.Config.Source(b), err)
		}
	}

	// Step 5: env materialization.
	env, err := buildenv.Compose(bd.Config, b, sandboxEnv)
	if err != nil {
		return err
	}

	envPath := filepath.Join(bd.Config.Build(b), "_esy", "env")
	if err := os.WriteFile(envPath, []byte(buildenv.Render(env)), 0o644); err != nil {
		return forge.NewIOFailure("write", envPath, err)
	}

	// Step 6: findlib config.
	findlibPath := filepath.Join(bd.Config.Build(b), "_esy", "findlib.conf")
	if err := os.WriteFile(findlibPath, []byte(FindlibConf(bd.Config, b)), 0o644); err != nil {
		return forge.NewIOFailure("write", findlibPath, err)
	}

	// Step 7: command execution.
	envPairs := flattenEnv(env)

	for i, cmd := range b.Command {
		log.WithField("command", cmd).Debug("running command")

		if err := bd.runCommand(ctx, b, i, cmd, envPairs); err != nil {
			return err
		}
	}

	// Step 8: path rewrite.
	if err := RewriteInstallPrefix(bd.Config.Install(b), bd.Config.Install(b), bd.Config.FinalInstall(b)); err != nil {
		return err
	}

	// Step 9: finalize.
	if err := os.Rename(bd.Config.Install(b), bd.Config.FinalInstall(b)); err != nil {
		return forge.NewIOFailure("rename", bd.Config.Install(b), err)
	}

	fsyncParent(filepath.Dir(bd.Config.FinalInstall(b)))

	log.Info("build finalized")

	return nil
}

// shellMetacharacters is the set of characters that make a command string
// require real shell interpretation rather than forge's direct-exec fast
// path (SPEC_FULL.md §4).
var shellMetacharacters = regexp.MustCompile("[|&;<>()$`\"'*?\\[\\]{}~#\\\\\n]")

// runCommand executes one command string in root(b), with envPairs merged
// over the process environment (composed values win). Commands that go
// through /bin/sh -c source build(b)/_esy/env first; the direct-exec fast
// path relies on envPairs alone. A non-zero exit aborts the build
// (spec.md §4.4 step 7).
func (bd *Builder) runCommand(ctx context.Context, b *forge.Build, index int, command string, envPairs []string) error {
	root := bd.Config.Root(b)
	envFile := filepath.Join(bd.Config.Build(b), "_esy", "env")

	var cmd *exec.Cmd

	if argv, ok := directExecArgv(command); ok {
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from the build manifest, same trust boundary as the shell path below
	} else {
		script := fmt.Sprintf("set -e\n. %s\n%s\n", shellQuote(envFile), command)
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", script)
	}

	cmd.Dir = root
	cmd.Env = append(append([]string{}, os.Environ()...), envPairs...)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr
	cmd.Stdout = os.Stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			return &forge.BuildCommandFailure{
				BuildID:      string(b.ID),
				CommandIndex: index,
				Command:      command,
				ExitCode:     exitErr.ExitCode(),
				StderrTail:   tail(stderr.String(), 4096),
			}
		}

		return forge.NewIOFailure("exec", command, err)
	}

	return nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}

	return ok
}

// directExecArgv returns the parsed argv for command if it contains no
// shell metacharacters and tokenizes cleanly, enabling the direct-exec fast
// path (SPEC_FULL.md §4). Any command needing real shell features still
// goes through /bin/sh -c.
func directExecArgv(command string) ([]string, bool) {
	if shellMetacharacters.MatchString(command) {
		return nil, false
	}

	argv, err := shlex.Split(command)
	if err != nil || len(argv) == 0 {
		return nil, false
	}

	return argv, true
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}

// flattenEnv renders env as NAME=VALUE pairs suitable for exec.Cmd.Env. A
// value ending in ":$NAME" (an accumulated path-like export) has that
// reference expanded to NAME's prior value — from an earlier group, else
// the process environment — as sourcing the rendered env would.
func flattenEnv(env buildenv.Environment) []string {
	var out []string

	values := map[string]string{}

	for _, group := range env.Groups {
		for _, exp := range group.Exports {
			value := exp.Value

			if ref := ":$" + exp.Name; strings.HasSuffix(value, ref) {
				prev, ok := values[exp.Name]
				if !ok {
					prev = os.Getenv(exp.Name)
				}

				value = strings.TrimSuffix(value, ref) + ":" + prev
			}

			values[exp.Name] = value
			out = append(out, exp.Name+"="+value)
		}
	}

	return out
}

// fsyncParent best-effort fsyncs dir after the commit-point rename, so the
// directory entry change is durable. Failures here are not reported: the
// rename itself already succeeded, and syncing is a durability refinement,
// not part of the documented commit protocol.
func fsyncParent(dir string) {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		return
	}

	defer unix.Close(fd)

	_ = unix.Fsync(fd)
}
