package engine

import "time"

// Config controls docker sandbox behavior.
type Config struct {
	// BinaryPath is the container CLI used to launch sandboxes.
	BinaryPath string
	// MountPoint is where the workspace appears inside the container.
	MountPoint string
	PidsLimit  int64
	CPUs       string
	TmpfsSizeMb int64
	RunAsUID   int64
	RunAsGID   int64
	// KillGrace is how long a terminated process gets before SIGKILL.
	KillGrace time.Duration
	// Output capture caps. Stdout needs room for the full payload the
	// verdict comparison reads; stderr only feeds token scans and logs.
	StdoutMaxBytes int64
	StderrMaxBytes int64
}

func (c Config) withDefaults() Config {
	if c.BinaryPath == "" {
		c.BinaryPath = "docker"
	}
	if c.MountPoint == "" {
		c.MountPoint = "/app"
	}
	if c.PidsLimit == 0 {
		c.PidsLimit = 64
	}
	if c.CPUs == "" {
		c.CPUs = "1.0"
	}
	if c.TmpfsSizeMb == 0 {
		c.TmpfsSizeMb = 32
	}
	if c.RunAsUID == 0 {
		c.RunAsUID = 65334
	}
	if c.RunAsGID == 0 {
		c.RunAsGID = 65334
	}
	if c.KillGrace == 0 {
		c.KillGrace = 5 * time.Second
	}
	if c.StdoutMaxBytes == 0 {
		c.StdoutMaxBytes = 10 << 20
	}
	if c.StderrMaxBytes == 0 {
		c.StderrMaxBytes = 256 << 10
	}
	return c
}
