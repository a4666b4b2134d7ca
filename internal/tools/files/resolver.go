package files

import (
	"strings"

	"github.com/nexus-agent/orchestrator/internal/pathguard"
)

// Resolver resolves and validates workspace-relative paths for the
// file tools, delegating containment and symlink-chain checks to
// pathguard so every tool gets the same allowlist semantics.
type Resolver struct {
	Root string

	guard *pathguard.Guard
}

// Resolve returns an absolute path within the workspace root, or an
// error if path escapes it directly or via a symlink.
func (r *Resolver) Resolve(path string) (string, error) {
	if r.guard == nil {
		root := strings.TrimSpace(r.Root)
		if root == "" {
			root = "."
		}
		guard, err := pathguard.New([]string{root})
		if err != nil {
			return "", err
		}
		r.guard = guard
	}
	return r.guard.Resolve(path)
}
