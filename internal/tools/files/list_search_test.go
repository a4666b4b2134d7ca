package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "readme.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewListTool(Config{Workspace: root})
	params, _ := json.Marshal(map[string]interface{}{"recursive": true})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(result.Content, "src/main.go") {
		t.Fatalf("expected nested file in listing, got %s", result.Content)
	}
	if !strings.Contains(result.Content, "readme.md") {
		t.Fatalf("expected top-level file in listing, got %s", result.Content)
	}
}

func TestListFiles_DefaultExclusions(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "node_modules", "x"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "a.py"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "b.pyc"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewListTool(Config{Workspace: root})
	params, _ := json.Marshal(map[string]interface{}{"directory": ".", "pattern": "*", "recursive": true})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if strings.Contains(result.Content, "node_modules") {
		t.Fatalf("expected node_modules to be pruned, got %s", result.Content)
	}
	if strings.Contains(result.Content, "b.pyc") {
		t.Fatalf("expected *.pyc to be excluded by default, got %s", result.Content)
	}
	if !strings.Contains(result.Content, "src/a.py") {
		t.Fatalf("expected src/a.py in listing, got %s", result.Content)
	}
}

func TestListFiles_EmptyExcludePatternsDisablesDefaults(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "node_modules", "x.js"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewListTool(Config{Workspace: root})
	params, _ := json.Marshal(map[string]interface{}{
		"recursive":        true,
		"exclude_patterns": []string{},
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(result.Content, "node_modules/x.js") {
		t.Fatalf("expected node_modules entry with exclusions disabled, got %s", result.Content)
	}
}

func TestListFiles_Pattern(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.md"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewListTool(Config{Workspace: root})
	params, _ := json.Marshal(map[string]interface{}{"pattern": "*.go"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(result.Content, "a.go") {
		t.Fatalf("expected a.go in listing, got %s", result.Content)
	}
	if strings.Contains(result.Content, "b.md") {
		t.Fatalf("expected b.md to be filtered out, got %s", result.Content)
	}
}

func TestListFiles_IncludeDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}

	tool := NewListTool(Config{Workspace: root})

	withoutDirs, _ := json.Marshal(map[string]interface{}{})
	result, err := tool.Execute(context.Background(), withoutDirs)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if strings.Contains(result.Content, `"src"`) {
		t.Fatalf("expected directory entries omitted by default, got %s", result.Content)
	}

	withDirs, _ := json.Marshal(map[string]interface{}{"include_dirs": true})
	result, err = tool.Execute(context.Background(), withDirs)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(result.Content, `"src"`) {
		t.Fatalf("expected src directory entry with include_dirs=true, got %s", result.Content)
	}
}

func TestListFiles_RespectsGitignore(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app.go"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewListTool(Config{Workspace: root})
	params, _ := json.Marshal(map[string]interface{}{})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if strings.Contains(result.Content, "app.log") {
		t.Fatalf("expected app.log excluded via .gitignore, got %s", result.Content)
	}
	if !strings.Contains(result.Content, "app.go") {
		t.Fatalf("expected app.go in listing, got %s", result.Content)
	}
}

func TestSearchInFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world\nfoo bar\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewSearchTool(Config{Workspace: root})
	params, _ := json.Marshal(map[string]interface{}{"pattern": "wor.d"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(result.Content, "hello world") {
		t.Fatalf("expected match in results, got %s", result.Content)
	}
}

func TestGetWorkingDirectory(t *testing.T) {
	root := t.TempDir()
	tool := NewWorkingDirectoryTool(Config{Workspace: root})
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}
	if !strings.Contains(result.Content, resolvedRoot) {
		t.Fatalf("expected workspace root in result, got %s", result.Content)
	}
}

func TestFileExists(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "present.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tool := NewFileExistsTool(Config{Workspace: root})

	present, _ := json.Marshal(map[string]interface{}{"path": "present.txt"})
	result, err := tool.Execute(context.Background(), present)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(result.Content, `"exists": true`) {
		t.Fatalf("expected exists=true, got %s", result.Content)
	}

	missing, _ := json.Marshal(map[string]interface{}{"path": "missing.txt"})
	result, err = tool.Execute(context.Background(), missing)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(result.Content, `"exists": false`) {
		t.Fatalf("expected exists=false, got %s", result.Content)
	}
}
