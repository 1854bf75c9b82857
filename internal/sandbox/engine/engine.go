// Package engine executes untrusted commands in disposable containers and
// reports exit status, captured output and resource usage.
package engine

import (
	"context"
	"time"
)

// RunSpec describes one sandboxed process execution.
type RunSpec struct {
	// Image is the container image holding the language toolchain.
	Image string
	// Command is the argument vector executed inside the container.
	Command []string
	// WorkDir is the path of the submission workspace as seen by this
	// process. It is translated to a host path before mounting.
	WorkDir string
	// Writable mounts the workspace read-write. Compile steps need it
	// for their build artifacts; runs keep the mount read-only.
	Writable bool
	// Stdin is piped to the process.
	Stdin string
	// MemoryMb is the hard memory cap, already inflated per language.
	MemoryMb int64
	// WallTime is the hard wall-clock budget including grace.
	WallTime time.Duration
}

// RunResult captures everything one run leaves behind.
type RunResult struct {
	ExitCode     int
	Stdout       string
	Stderr       string
	CPUTimeMs    int64
	PeakMemoryKB int64
	WallExceeded bool
	WallTimeMs   int64
	// StdoutTruncated marks that the capture cap dropped output bytes,
	// making any output comparison unreliable.
	StdoutTruncated bool
}

// Engine runs commands under isolation.
type Engine interface {
	// Run executes the spec and blocks until the process is reaped.
	// The error return covers launch and transport failures only;
	// non-zero exits and timeouts are reported through the result.
	Run(ctx context.Context, spec RunSpec) (RunResult, error)
	// Ping verifies the sandbox runtime is reachable.
	Ping(ctx context.Context) error
}
