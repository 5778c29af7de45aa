// Package restart implements the self-restart sequence that lets a
// merged improvement PR take effect in the running process. The engine
// is expected to run under a supervisor that is a proper init (PID 1
// must reap children); the re-exec itself replaces the process image
// in place, so the supervisor never sees an exit.
package restart

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"autogov/internal/logging"
)

// Flag names injected into the replacement argv so counters survive the
// exec boundary.
const (
	CycleOffsetFlag      = "--cycle-offset"
	ProductiveOffsetFlag = "--productive-offset"
)

// Restarter runs the restart sequence: push the journals, pull the
// merged code fast-forward-only, rebuild, then replace the process
// image. Every step that can fail aborts the restart and leaves the
// current process running.
type Restarter struct {
	workspace string
	branch    string
	dataDir   string

	// Injection points for tests. run executes one command in the
	// workspace and returns combined output; execve replaces the
	// process image and does not return on success.
	run        func(ctx context.Context, name string, args ...string) (string, error)
	execve     func(argv0 string, argv, envv []string) error
	executable func() (string, error)
	args       func() []string
}

// New returns a Restarter for the workspace, pulling and pushing
// branch. dataDir is the journal directory committed before the pull.
func New(workspace, branch, dataDir string) *Restarter {
	r := &Restarter{
		workspace:  workspace,
		branch:     branch,
		dataDir:    dataDir,
		execve:     syscall.Exec,
		executable: os.Executable,
		args:       func() []string { return os.Args },
	}
	r.run = r.runCmd
	return r
}

// Restart runs the full sequence for the given counters. On success it
// never returns; any returned error means the process is unchanged and
// the loop should carry on.
func (r *Restarter) Restart(ctx context.Context, cycle, productive int) error {
	logging.Restart("restart sequence starting at cycle %d (%d productive)", cycle, productive)

	if err := r.pushJournals(ctx, cycle); err != nil {
		logging.Audit().Reexec(false, err.Error())
		return err
	}
	if err := r.pull(ctx); err != nil {
		logging.Audit().Reexec(false, err.Error())
		return err
	}
	if err := r.rebuild(ctx); err != nil {
		logging.Audit().Reexec(false, err.Error())
		return err
	}

	exe, err := r.executable()
	if err != nil {
		logging.Audit().Reexec(false, err.Error())
		return fmt.Errorf("resolve executable: %w", err)
	}
	argv := RebuildArgs(r.args(), cycle, productive)

	logging.Restart("re-exec: %s %s", exe, strings.Join(argv[1:], " "))
	logging.Audit().Reexec(true, fmt.Sprintf("cycle %d", cycle))
	logging.CloseAll()

	if err := r.execve(exe, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", exe, err)
	}
	return nil
}

// pushJournals commits the journal directory and pushes it so the
// pulled history and the local telemetry cannot diverge. A clean tree
// is fine; a failed push is not.
func (r *Restarter) pushJournals(ctx context.Context, cycle int) error {
	if _, err := r.run(ctx, "git", "add", "-A", "--", r.dataDir); err != nil {
		return fmt.Errorf("stage journals: %w", err)
	}
	out, err := r.run(ctx, "git", "commit", "-m", fmt.Sprintf("Record telemetry through cycle %d", cycle))
	if err != nil && !strings.Contains(out, "nothing to commit") {
		return fmt.Errorf("commit journals: %w", err)
	}
	if _, err := r.run(ctx, "git", "push", "origin", r.branch); err != nil {
		return fmt.Errorf("push journals: %w", err)
	}
	return nil
}

// pull brings the merged PR in, fast-forward only. Anything needing a
// merge or rebase aborts the restart; the next cycle can file that as
// an error instead of guessing at a resolution.
func (r *Restarter) pull(ctx context.Context) error {
	if out, err := r.run(ctx, "git", "pull", "--ff-only", "origin", r.branch); err != nil {
		return fmt.Errorf("ff-only pull: %w (%s)", err, firstLine(out))
	}
	return nil
}

// rebuild reinstalls dependencies and recompiles the engine over the
// pulled tree, writing the binary over the currently running one.
func (r *Restarter) rebuild(ctx context.Context) error {
	if _, err := r.run(ctx, "go", "mod", "download"); err != nil {
		return fmt.Errorf("dependency sync: %w", err)
	}
	exe, err := r.executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if out, err := r.run(ctx, "go", "build", "-o", exe, "./cmd/autogov"); err != nil {
		return fmt.Errorf("rebuild: %w (%s)", err, firstLine(out))
	}
	return nil
}

// RebuildArgs returns argv for the replacement process: the original
// argv with any previous offset flags stripped and the new counters
// appended.
func RebuildArgs(args []string, cycle, productive int) []string {
	out := make([]string, 0, len(args)+4)
	skip := false
	for i, a := range args {
		if skip {
			skip = false
			continue
		}
		switch {
		case a == CycleOffsetFlag || a == ProductiveOffsetFlag:
			skip = i+1 < len(args) && !strings.HasPrefix(args[i+1], "-")
		case strings.HasPrefix(a, CycleOffsetFlag+"=") || strings.HasPrefix(a, ProductiveOffsetFlag+"="):
			// dropped
		default:
			out = append(out, a)
		}
	}
	out = append(out,
		CycleOffsetFlag, strconv.Itoa(cycle),
		ProductiveOffsetFlag, strconv.Itoa(productive),
	)
	return out
}

func (r *Restarter) runCmd(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.workspace
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	logging.RestartDebug("%s %s", name, strings.Join(args, " "))
	err := cmd.Run()
	return buf.String(), err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
