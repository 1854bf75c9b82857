package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The shim wraps the real command so that every run reports CPU time and
// peak memory on stderr. bash's time builtin prints user/sys lines in
// <min>m<sec>s form; the cgroup peak is emitted as a MEMORY_KB sentinel.
// The exit code of the wrapped command is preserved.
const shimScript = `time "$@"
rc=$?
peak=$(cat /sys/fs/cgroup/memory.peak 2>/dev/null || echo 0)
echo "MEMORY_KB:$((peak/1024))" >&2
exit $rc`

const memorySentinel = "MEMORY_KB:"

// timeLine matches the time builtin's output, e.g. "user\t0m0.123s".
var timeLine = regexp.MustCompile(`^(real|user|sys)\s+(\d+)m([0-9.]+)s$`)

// wrapWithShim prefixes the command with the measuring wrapper.
func wrapWithShim(cmd []string) []string {
	wrapped := make([]string, 0, len(cmd)+4)
	wrapped = append(wrapped, "/bin/bash", "-c", shimScript, "bash")
	return append(wrapped, cmd...)
}

// parseShimStderr extracts CPU time (user+sys) and peak memory from the
// shim's stderr lines and returns the program's own stderr with the shim
// lines removed. Missing measurements come back as zero.
func parseShimStderr(stderr string) (cpuMs int64, peakKB int64, rest string) {
	if stderr == "" {
		return 0, 0, ""
	}
	kept := make([]string, 0, 8)
	for _, line := range strings.Split(stderr, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, memorySentinel) {
			if v, err := strconv.ParseInt(strings.TrimSpace(trimmed[len(memorySentinel):]), 10, 64); err == nil && v > 0 {
				peakKB = v
			}
			continue
		}
		if m := timeLine.FindStringSubmatch(trimmed); m != nil {
			if m[1] == "user" || m[1] == "sys" {
				cpuMs += clockToMs(m[2], m[3])
			}
			continue
		}
		kept = append(kept, line)
	}
	rest = strings.TrimRight(strings.Join(kept, "\n"), "\n")
	return cpuMs, peakKB, rest
}

func clockToMs(minutes, seconds string) int64 {
	mins, err := strconv.ParseInt(minutes, 10, 64)
	if err != nil {
		return 0
	}
	secs, err := strconv.ParseFloat(seconds, 64)
	if err != nil {
		return 0
	}
	return mins*60_000 + int64(math.Round(secs*1000))
}
