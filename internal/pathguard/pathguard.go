// Package pathguard validates that file paths requested by tool calls
// stay within an allowlist of workspace roots, rejecting both direct
// traversal and symlinks that resolve outside the allowed roots.
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InvalidPath is returned for any path that fails containment or
// symlink-chain validation. Callers should treat it as a tool-call
// argument error, not an I/O failure.
type InvalidPath struct {
	Path   string
	Reason string
}

func (e *InvalidPath) Error() string {
	return fmt.Sprintf("path %q is not allowed: %s", e.Path, e.Reason)
}

// Guard validates paths against a fixed set of allowed root
// directories, resolved once at construction time.
type Guard struct {
	roots []string
}

// New resolves each root to an absolute, symlink-free path and
// returns a Guard that only accepts paths contained within them.
func New(roots []string) (*Guard, error) {
	if len(roots) == 0 {
		return nil, errors.New("pathguard: at least one allowed root is required")
	}
	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		expanded, err := expandHome(root)
		if err != nil {
			return nil, fmt.Errorf("pathguard: expand root %q: %w", root, err)
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return nil, fmt.Errorf("pathguard: resolve root %q: %w", root, err)
		}
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			// Root may not exist yet (e.g. a workspace to be created);
			// fall back to the cleaned absolute path.
			real = filepath.Clean(abs)
		}
		resolved = append(resolved, real)
	}
	return &Guard{roots: resolved}, nil
}

// Resolve validates path and returns its resolved absolute form. path
// may be relative (joined against the first allowed root), absolute,
// or "~"-prefixed.
//
// Resolve mirrors path_validator.py's three-step check: resolve the
// path (following symlinks), verify containment against the allowed
// roots, then re-walk the path component by component to catch any
// symlink within the matched root whose target escapes the roots.
func (g *Guard) Resolve(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", &InvalidPath{Path: path, Reason: "path is required"}
	}

	expanded, err := expandHome(trimmed)
	if err != nil {
		return "", &InvalidPath{Path: path, Reason: err.Error()}
	}

	var original string
	if filepath.IsAbs(expanded) {
		original = filepath.Clean(expanded)
	} else {
		original = filepath.Join(g.roots[0], expanded)
	}

	resolved, err := resolveFollowingSymlinks(original)
	if err != nil {
		return "", &InvalidPath{Path: path, Reason: fmt.Sprintf("failed to resolve: %v", err)}
	}

	matchedRoot, ok := g.matchRoot(resolved)
	if !ok {
		return "", &InvalidPath{Path: path, Reason: "not within allowed directories"}
	}

	if err := g.checkSymlinkChain(original, matchedRoot); err != nil {
		return "", err
	}

	return resolved, nil
}

func (g *Guard) matchRoot(path string) (string, bool) {
	for _, root := range g.roots {
		if path == root {
			return root, true
		}
		if strings.HasPrefix(path, root+string(os.PathSeparator)) {
			return root, true
		}
	}
	return "", false
}

// checkSymlinkChain walks original's components beneath matchedRoot
// only — never above it — so symlinks in the ambient filesystem
// structure leading up to the root (e.g. /var -> /private/var) never
// trigger a false positive.
func (g *Guard) checkSymlinkChain(original, matchedRoot string) error {
	rel, err := filepath.Rel(matchedRoot, original)
	if err != nil || rel == "." {
		return nil
	}
	current := matchedRoot
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if part == "" || part == "." {
			continue
		}
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if err != nil {
			// Component doesn't exist yet (e.g. a file about to be
			// created); nothing further to check.
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(current)
			if err != nil {
				return &InvalidPath{Path: original, Reason: fmt.Sprintf("failed to resolve symlink %s: %v", current, err)}
			}
			if _, ok := g.matchRoot(target); !ok {
				return &InvalidPath{Path: original, Reason: fmt.Sprintf("symlink %s escapes allowed roots", current)}
			}
		}
	}
	return nil
}

// resolveFollowingSymlinks cleans path and resolves it through any
// existing symlinks, falling back to the cleaned form for components
// that don't exist yet (mirrors Python's Path.resolve(), which does
// not require the full path to exist).
func resolveFollowingSymlinks(path string) (string, error) {
	clean := filepath.Clean(path)
	if real, err := filepath.EvalSymlinks(clean); err == nil {
		return real, nil
	}
	dir, base := filepath.Split(clean)
	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	if dir == "" {
		return clean, nil
	}
	realDir, err := resolveFollowingSymlinks(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(realDir, base), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"+string(os.PathSeparator))), nil
}
