// Package workspace manages the on-disk lifetime of one submission's
// source files.
package workspace

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	appErr "algojudge/pkg/errors"
)

// extByLanguage maps language identifiers to source file extensions. The
// source file is always named Main so compiled entry points resolve
// without extra flags.
var extByLanguage = map[string]string{
	"JAVA":   "java",
	"PYTHON": "py",
	"KOTLIN": "kt",
	"SWIFT":  "swift",
}

// Manager materializes submission sources under a temp root and tears
// them down after judging. Layout: <root>/<username>/<submissionId>/.
type Manager struct {
	root string
}

// NewManager creates a manager rooted at tempRoot.
func NewManager(tempRoot string) (*Manager, error) {
	if tempRoot == "" {
		return nil, appErr.ValidationError("tempRoot", "required")
	}
	abs, err := filepath.Abs(tempRoot)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "resolve temp root failed")
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute temp root.
func (m *Manager) Root() string {
	return m.root
}

// Materialize writes the source to <root>/<username>/<submissionId>/Main.<ext>
// and returns the file path. Line endings are normalized to LF. The
// submission directory is made world-writable because the compile
// sandbox writes build artifacts into it under an unprivileged uid.
func (m *Manager) Materialize(source string, submissionID int64, username, language string) (string, error) {
	ext, ok := extByLanguage[strings.ToUpper(language)]
	if !ok {
		return "", appErr.Newf(appErr.LanguageNotSupported, "unsupported language: %s", language)
	}
	dir, err := m.submissionDir(submissionID, username)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceError, "create submission dir failed")
	}
	if err := os.Chmod(dir, 0777); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceError, "chmod submission dir failed")
	}

	path := filepath.Join(dir, "Main."+ext)
	normalized := strings.ReplaceAll(source, "\r\n", "\n")
	if err := os.WriteFile(path, []byte(normalized), 0644); err != nil {
		return "", appErr.Wrapf(err, appErr.WorkspaceError, "write source failed")
	}
	return path, nil
}

// Destroy removes the submission directory and best-effort removes the
// parent user directory when it became empty. Missing paths are not an
// error, so redelivered submissions can always clean up.
func (m *Manager) Destroy(submissionID int64, username string) error {
	dir, err := m.submissionDir(submissionID, username)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceError, "remove submission dir failed")
	}
	// Fails while sibling submissions exist; that is fine.
	_ = os.Remove(filepath.Dir(dir))
	return nil
}

func (m *Manager) submissionDir(submissionID int64, username string) (string, error) {
	if username == "" {
		return "", appErr.ValidationError("username", "required")
	}
	dir := filepath.Clean(filepath.Join(m.root, username, strconv.FormatInt(submissionID, 10)))
	if !strings.HasPrefix(dir, m.root+string(os.PathSeparator)) {
		return "", appErr.Newf(appErr.ValidationFailed, "username %q escapes the temp root", username)
	}
	return dir, nil
}
