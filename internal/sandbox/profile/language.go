// Package profile defines per-language compile/run recipes and the
// declared-to-effective limit inflation applied before enforcement.
package profile

import (
	"strconv"
	"strings"

	"github.com/google/shlex"

	appErr "algojudge/pkg/errors"
)

// Command template placeholders.
const (
	placeholderSource = "{src}"
	placeholderMemory = "{mem}"
)

// LanguageSpec defines how to compile and run a language inside the
// sandbox.
type LanguageSpec struct {
	ID             string
	Image          string
	SourceFile     string
	CompileEnabled bool
	CompileCmdTpl  string
	RunCmdTpl      string

	// Declared limits are inflated to k*x + c per resource before
	// enforcement. Interpreter and VM startup costs dwarf user code at
	// small limits, so every language carries its own table.
	TimeMultiplier   int64
	TimeOffsetSec    int64
	MemoryMultiplier int64
	MemoryOffsetMb   int64

	// Stderr substrings that denote an out-of-memory kill when the exit
	// code alone is inconclusive.
	MemoryErrorTokens []string

	// Stderr substrings that denote a compile failure even when the
	// compile step exits zero. Interpreters that report syntax problems
	// without a failing exit status need these.
	CompileErrorTokens []string
}

// EffectiveLimits inflates the declared limits for this language.
func (s LanguageSpec) EffectiveLimits(timeSec, memoryMb int64) (effTimeSec, effMemoryMb int64) {
	effTimeSec = timeSec*s.TimeMultiplier + s.TimeOffsetSec
	effMemoryMb = memoryMb*s.MemoryMultiplier + s.MemoryOffsetMb
	return effTimeSec, effMemoryMb
}

// CompileCommand expands the compile template into an argument vector.
// Languages without a compile step return nil.
func (s LanguageSpec) CompileCommand() ([]string, error) {
	if !s.CompileEnabled || s.CompileCmdTpl == "" {
		return nil, nil
	}
	return s.expand(s.CompileCmdTpl, 0)
}

// RunCommand expands the run template into an argument vector using the
// effective memory limit for interpreter/VM flags.
func (s LanguageSpec) RunCommand(effMemoryMb int64) ([]string, error) {
	if s.RunCmdTpl == "" {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "language %s has no run command", s.ID)
	}
	return s.expand(s.RunCmdTpl, effMemoryMb)
}

func (s LanguageSpec) expand(tpl string, memoryMb int64) ([]string, error) {
	expanded := strings.ReplaceAll(tpl, placeholderSource, s.SourceFile)
	expanded = strings.ReplaceAll(expanded, placeholderMemory, strconv.FormatInt(memoryMb, 10))
	argv, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidFormat, "split command template %q failed", tpl)
	}
	if len(argv) == 0 {
		return nil, appErr.Newf(appErr.InvalidFormat, "command template %q is empty", tpl)
	}
	return argv, nil
}

// Defaults returns the built-in language table.
func Defaults() []LanguageSpec {
	return []LanguageSpec{
		{
			ID:                "JAVA",
			Image:             "amazoncorretto:21",
			SourceFile:        "Main.java",
			CompileEnabled:    true,
			CompileCmdTpl:     "javac {src}",
			RunCmdTpl:         "java -Xmx{mem}m -Dfile.encoding=UTF-8 -cp . Main",
			TimeMultiplier:    2,
			TimeOffsetSec:     1,
			MemoryMultiplier:  2,
			MemoryOffsetMb:    16,
			MemoryErrorTokens: []string{"OutOfMemoryError"},
		},
		{
			ID:                 "PYTHON",
			Image:              "python:3.13-slim",
			SourceFile:         "Main.py",
			CompileEnabled:     true,
			CompileCmdTpl:      "python -m py_compile {src}",
			RunCmdTpl:          "python -I -S -W ignore {src}",
			TimeMultiplier:     3,
			TimeOffsetSec:      2,
			MemoryMultiplier:   2,
			MemoryOffsetMb:     16,
			MemoryErrorTokens:  []string{"MemoryError"},
			CompileErrorTokens: []string{"SyntaxError", "IndentationError", "TabError"},
		},
	}
}

// Registry resolves language identifiers to specs.
type Registry struct {
	specs map[string]LanguageSpec
}

// NewRegistry builds a registry from the given specs. An empty slice
// falls back to Defaults.
func NewRegistry(specs []LanguageSpec) *Registry {
	if len(specs) == 0 {
		specs = Defaults()
	}
	index := make(map[string]LanguageSpec, len(specs))
	for _, spec := range specs {
		index[strings.ToUpper(spec.ID)] = spec
	}
	return &Registry{specs: index}
}

// Get returns the spec for a language identifier.
func (r *Registry) Get(languageID string) (LanguageSpec, error) {
	spec, ok := r.specs[strings.ToUpper(languageID)]
	if !ok {
		return LanguageSpec{}, appErr.Newf(appErr.LanguageNotSupported, "unsupported language: %s", languageID)
	}
	return spec, nil
}
