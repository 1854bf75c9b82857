package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	appErr "algojudge/pkg/errors"
)

// DockerEngine launches every run as a disposable container driven
// through the docker CLI. Containers get no network, a read-only root,
// dropped capabilities, a pids cap and a hard memory cap; the workspace
// is the only bind mount.
type DockerEngine struct {
	cfg   Config
	paths *PathMap
}

// NewDockerEngine creates an engine with the given config and host path
// mapping.
func NewDockerEngine(cfg Config, paths *PathMap) *DockerEngine {
	if paths == nil {
		paths = NewPathMap(nil)
	}
	return &DockerEngine{cfg: cfg.withDefaults(), paths: paths}
}

var _ Engine = (*DockerEngine)(nil)

// Ping verifies the container runtime daemon responds.
func (e *DockerEngine) Ping(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, e.cfg.BinaryPath, "version", "--format", "{{.Server.Version}}").CombinedOutput()
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxUnavailable, "container runtime probe failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// Run executes the spec in a fresh container and reaps it on all exit
// paths. Wall-clock overrun is reported through WallExceeded rather than
// an error so the caller can classify it.
func (e *DockerEngine) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	if spec.Image == "" {
		return RunResult{}, appErr.New(appErr.InvalidParams).WithMessage("sandbox image is required")
	}
	if len(spec.Command) == 0 {
		return RunResult{}, appErr.New(appErr.InvalidParams).WithMessage("sandbox command is required")
	}
	if spec.WallTime <= 0 {
		return RunResult{}, appErr.New(appErr.InvalidParams).WithMessage("sandbox wall time is required")
	}

	cmd := exec.Command(e.cfg.BinaryPath, e.buildArgs(spec)...)
	cmd.Stdin = strings.NewReader(spec.Stdin)
	stdout := newLimitedBuffer(e.cfg.StdoutMaxBytes)
	stderr := newLimitedBuffer(e.cfg.StderrMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RunResult{}, appErr.Wrapf(err, appErr.SandboxUnavailable, "launch sandbox failed")
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	timer := time.NewTimer(spec.WallTime)
	defer timer.Stop()

	var res RunResult
	var runErr error
	select {
	case runErr = <-waitErr:
	case <-timer.C:
		res.WallExceeded = true
		runErr = e.reap(cmd, waitErr)
	case <-ctx.Done():
		_ = e.reap(cmd, waitErr)
		return RunResult{}, appErr.Wrapf(ctx.Err(), appErr.Timeout, "sandbox run canceled")
	}

	if runErr != nil && !res.WallExceeded {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return RunResult{}, appErr.Wrapf(runErr, appErr.SandboxUnavailable, "sandbox wait failed")
		}
	}

	res.WallTimeMs = time.Since(start).Milliseconds()
	res.ExitCode = exitCode(runErr)
	res.Stdout = stdout.String()
	res.StdoutTruncated = stdout.Truncated()
	res.CPUTimeMs, res.PeakMemoryKB, res.Stderr = parseShimStderr(stderr.String())
	return res, nil
}

// reap terminates the process group and blocks until the child is waited
// for. SIGTERM first so the runtime can tear the container down, SIGKILL
// after the grace period.
func (e *DockerEngine) reap(cmd *exec.Cmd, waitErr <-chan error) error {
	if cmd.Process == nil {
		return <-waitErr
	}
	terminateGroup(cmd.Process.Pid)
	select {
	case err := <-waitErr:
		return err
	case <-time.After(e.cfg.KillGrace):
	}
	killGroup(cmd.Process.Pid)
	return <-waitErr
}

func (e *DockerEngine) buildArgs(spec RunSpec) []string {
	mode := "ro"
	if spec.Writable {
		mode = "rw"
	}
	hostDir := e.paths.Resolve(spec.WorkDir)
	args := []string{
		"run", "--rm",
		"--network=none",
		fmt.Sprintf("--pids-limit=%d", e.cfg.PidsLimit),
		"--cpus", e.cfg.CPUs,
		"--read-only",
		"--tmpfs", fmt.Sprintf("/tmp:rw,noexec,nosuid,size=%dm", e.cfg.TmpfsSizeMb),
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--user", fmt.Sprintf("%d:%d", e.cfg.RunAsUID, e.cfg.RunAsGID),
		"--memory", fmt.Sprintf("%dm", spec.MemoryMb),
		"-v", fmt.Sprintf("%s:%s:%s", hostDir, e.cfg.MountPoint, mode),
		"-w", e.cfg.MountPoint,
		"-i",
		spec.Image,
	}
	return append(args, wrapWithShim(spec.Command)...)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// limitedBuffer keeps the first max bytes written and drops the rest, so
// a flooding process can neither block the pipe copy nor grow memory
// without bound. Dropped bytes are remembered so the caller can tell a
// complete capture from a clipped one.
type limitedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func newLimitedBuffer(max int64) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remain := b.max - int64(b.buf.Len())
	if remain <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > remain {
		b.buf.Write(p[:remain])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

func (b *limitedBuffer) Truncated() bool {
	return b.truncated
}
