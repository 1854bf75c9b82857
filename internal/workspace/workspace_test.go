package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"algojudge/internal/workspace"
	appErr "algojudge/pkg/errors"
)

func TestMaterializeLayout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m, err := workspace.NewManager(root)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	path, err := m.Materialize("print(1)\n", 42, "alice", "PYTHON")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	want := filepath.Join(root, "alice", "42", "Main.py")
	if path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != "print(1)\n" {
		t.Fatalf("unexpected source content: %q", data)
	}
}

func TestMaterializeNormalizesLineEndings(t *testing.T) {
	t.Parallel()

	m, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	path, err := m.Materialize("class Main {\r\n}\r\n", 7, "bob", "JAVA")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if filepath.Base(path) != "Main.java" {
		t.Fatalf("expected Main.java, got %s", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "class Main {\n}\n" {
		t.Fatalf("expected LF line endings, got %q", data)
	}
}

func TestMaterializeUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	m, _ := workspace.NewManager(t.TempDir())
	if _, err := m.Materialize("x", 1, "alice", "COBOL"); !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
}

func TestDestroyRemovesSubmissionAndEmptyParent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m, _ := workspace.NewManager(root)

	path, err := m.Materialize("x", 1, "carol", "PYTHON")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if err := m.Destroy(1, "carol"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Fatal("submission dir must be gone")
	}
	if _, err := os.Stat(filepath.Join(root, "carol")); !os.IsNotExist(err) {
		t.Fatal("empty user dir must be gone")
	}
}

func TestDestroyKeepsBusyParent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	m, _ := workspace.NewManager(root)

	if _, err := m.Materialize("x", 1, "dave", "PYTHON"); err != nil {
		t.Fatalf("materialize 1: %v", err)
	}
	if _, err := m.Materialize("y", 2, "dave", "PYTHON"); err != nil {
		t.Fatalf("materialize 2: %v", err)
	}
	if err := m.Destroy(1, "dave"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "dave", "2", "Main.py")); err != nil {
		t.Fatalf("sibling submission must survive: %v", err)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	t.Parallel()

	m, _ := workspace.NewManager(t.TempDir())
	if err := m.Destroy(99, "nobody"); err != nil {
		t.Fatalf("destroy of missing workspace must succeed, got %v", err)
	}
	if err := m.Destroy(99, "nobody"); err != nil {
		t.Fatalf("second destroy must succeed, got %v", err)
	}
}

func TestMaterializeRejectsPathTraversal(t *testing.T) {
	t.Parallel()

	m, _ := workspace.NewManager(t.TempDir())
	if _, err := m.Materialize("x", 1, "../../etc", "PYTHON"); err == nil {
		t.Fatal("expected traversal rejection")
	}
}
