package engine

import "testing"

func TestParseShimStderr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stderr   string
		wantCPU  int64
		wantPeak int64
		wantRest string
	}{
		{
			name:     "empty",
			stderr:   "",
			wantCPU:  0,
			wantPeak: 0,
			wantRest: "",
		},
		{
			name:     "plain time output",
			stderr:   "\nreal\t0m1.234s\nuser\t0m0.120s\nsys\t0m0.030s\nMEMORY_KB:2048\n",
			wantCPU:  150,
			wantPeak: 2048,
			wantRest: "",
		},
		{
			name:     "minutes carry over",
			stderr:   "user\t1m2.500s\nsys\t0m0.500s\nMEMORY_KB:512",
			wantCPU:  63000,
			wantPeak: 512,
			wantRest: "",
		},
		{
			name:     "program stderr survives",
			stderr:   "Traceback (most recent call last):\n  ValueError: bad input\nuser\t0m0.050s\nsys\t0m0.010s\nMEMORY_KB:0",
			wantCPU:  60,
			wantPeak: 0,
			wantRest: "Traceback (most recent call last):\n  ValueError: bad input",
		},
		{
			name:     "missing sentinel yields zero peak",
			stderr:   "user\t0m0.100s\nsys\t0m0.000s",
			wantCPU:  100,
			wantPeak: 0,
			wantRest: "",
		},
		{
			name:     "garbage sentinel ignored",
			stderr:   "MEMORY_KB:not-a-number\nuser\t0m0.010s\nsys\t0m0.000s",
			wantCPU:  10,
			wantPeak: 0,
			wantRest: "",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cpu, peak, rest := parseShimStderr(tc.stderr)
			if cpu != tc.wantCPU {
				t.Fatalf("expected cpu %d ms, got %d", tc.wantCPU, cpu)
			}
			if peak != tc.wantPeak {
				t.Fatalf("expected peak %d kb, got %d", tc.wantPeak, peak)
			}
			if rest != tc.wantRest {
				t.Fatalf("expected rest %q, got %q", tc.wantRest, rest)
			}
		})
	}
}

func TestWrapWithShim(t *testing.T) {
	t.Parallel()

	wrapped := wrapWithShim([]string{"python", "-I", "Main.py"})
	if len(wrapped) != 7 {
		t.Fatalf("expected 7 argv entries, got %d: %v", len(wrapped), wrapped)
	}
	if wrapped[0] != "/bin/bash" || wrapped[1] != "-c" {
		t.Fatalf("expected bash -c prefix, got %v", wrapped[:2])
	}
	// $0 placeholder, then the real command.
	if wrapped[3] != "bash" || wrapped[4] != "python" || wrapped[6] != "Main.py" {
		t.Fatalf("unexpected wrapped argv: %v", wrapped)
	}
}
