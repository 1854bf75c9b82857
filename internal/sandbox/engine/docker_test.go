package engine

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestBuildArgsIsolationFlags(t *testing.T) {
	t.Parallel()

	paths := NewPathMap([]Mapping{{ContainerRoot: "/judge/tmp", HostRoot: "/srv/judge/tmp"}})
	eng := NewDockerEngine(Config{}, paths)

	args := eng.buildArgs(RunSpec{
		Image:    "python:3.13-slim",
		Command:  []string{"python", "-I", "Main.py"},
		WorkDir:  "/judge/tmp/alice/7",
		MemoryMb: 272,
		WallTime: 5 * time.Second,
	})

	wantPrefix := []string{
		"run", "--rm",
		"--network=none",
		"--pids-limit=64",
		"--cpus", "1.0",
		"--read-only",
		"--tmpfs", "/tmp:rw,noexec,nosuid,size=32m",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--user", "65334:65334",
		"--memory", "272m",
		"-v", "/srv/judge/tmp/alice/7:/app:ro",
		"-w", "/app",
		"-i",
		"python:3.13-slim",
	}
	if len(args) < len(wantPrefix) {
		t.Fatalf("argv too short: %v", args)
	}
	if !reflect.DeepEqual(args[:len(wantPrefix)], wantPrefix) {
		t.Fatalf("expected argv prefix\n%v\ngot\n%v", wantPrefix, args[:len(wantPrefix)])
	}
	// The rest is the shim-wrapped command.
	rest := args[len(wantPrefix):]
	if rest[0] != "/bin/bash" {
		t.Fatalf("expected shim wrapper after image, got %v", rest)
	}
	last := rest[len(rest)-1]
	if last != "Main.py" {
		t.Fatalf("expected user command at the end, got %q", last)
	}
}

func TestBuildArgsWritableCompileMount(t *testing.T) {
	t.Parallel()

	eng := NewDockerEngine(Config{}, nil)
	args := eng.buildArgs(RunSpec{
		Image:    "amazoncorretto:21",
		Command:  []string{"javac", "Main.java"},
		WorkDir:  "/judge/tmp/bob/9",
		Writable: true,
		MemoryMb: 528,
		WallTime: 90 * time.Second,
	})

	found := false
	for _, arg := range args {
		if arg == "/judge/tmp/bob/9:/app:rw" {
			found = true
		}
		if arg == "/judge/tmp/bob/9:/app:ro" {
			t.Fatal("compile mount must be read-write")
		}
	}
	if !found {
		t.Fatalf("expected rw bind mount in argv: %v", args)
	}
}

func TestLimitedBuffer(t *testing.T) {
	t.Parallel()

	buf := newLimitedBuffer(5)
	n, err := buf.Write([]byte("abc"))
	if err != nil || n != 3 {
		t.Fatalf("expected full write, got n=%d err=%v", n, err)
	}
	if buf.Truncated() {
		t.Fatal("buffer within cap must not report truncation")
	}
	n, err = buf.Write([]byte("defgh"))
	if err != nil || n != 5 {
		t.Fatalf("overflow write must report success, got n=%d err=%v", n, err)
	}
	if got := buf.String(); got != "abcde" {
		t.Fatalf("expected capped content %q, got %q", "abcde", got)
	}
	if !buf.Truncated() {
		t.Fatal("overflowing write must mark the capture truncated")
	}
	n, err = buf.Write([]byte("x"))
	if err != nil || n != 1 {
		t.Fatalf("write past cap must be swallowed, got n=%d err=%v", n, err)
	}

	exact := newLimitedBuffer(3)
	if _, err := exact.Write([]byte("abc")); err != nil {
		t.Fatalf("exact-fit write: %v", err)
	}
	if exact.Truncated() {
		t.Fatal("exact-fit capture must not report truncation")
	}
}

func TestRunValidation(t *testing.T) {
	t.Parallel()

	eng := NewDockerEngine(Config{}, nil)
	ctx := context.Background()

	if _, err := eng.Run(ctx, RunSpec{Command: []string{"true"}, WallTime: time.Second}); err == nil {
		t.Fatal("expected error for missing image")
	}
	if _, err := eng.Run(ctx, RunSpec{Image: "img", WallTime: time.Second}); err == nil {
		t.Fatal("expected error for missing command")
	}
	if _, err := eng.Run(ctx, RunSpec{Image: "img", Command: []string{"true"}}); err == nil {
		t.Fatal("expected error for missing wall time")
	}
}
