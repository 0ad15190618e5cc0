// Package boundary enforces the filesystem access perimeter around
// tool calls.
//
// Grounded on the teacher's core/pkg/boundary/perimeter.go: a
// constructed-once enforcer holding pre-resolved scopes, a
// denied-dominates-allowed precedence, and a path-containment helper
// rather than string prefixing. The forbidden-paths-first ordering
// mirrors clawinfra-evoclaw's SecurityPolicy.ValidatePath.
package boundary

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/openclaw/aasc/pkg/contracts"
)

// Boundary is a constructed filesystem access perimeter. All paths are
// home-expanded and made absolute once, at construction time.
type Boundary struct {
	readable []string
	writable []string
	denied   []string
}

// New builds a Boundary from a FilesystemBoundaryConfig, resolving `~`
// and relative segments up front.
func New(cfg contracts.FilesystemBoundaryConfig) *Boundary {
	return &Boundary{
		readable: resolveAll(cfg.Readable),
		writable: resolveAll(cfg.Writable),
		denied:   resolveAll(cfg.Denied),
	}
}

func resolveAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, resolvePath(p))
	}
	return out
}

func resolvePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			if p == "~" {
				p = home
			} else {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

// isPathInside reports whether child is parent itself or strictly
// nested inside it, using path-component containment rather than
// string prefixing: "/home/alice/secrets" is never inside "/home/alic".
func isPathInside(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func anyContains(scopes []string, target string) bool {
	for _, scope := range scopes {
		if isPathInside(scope, target) {
			return true
		}
	}
	return false
}

// CheckAccess evaluates target against the configured scopes for the
// given mode. Denied paths dominate, even over an otherwise-writable
// scope.
func (b *Boundary) CheckAccess(target string, mode contracts.FilesystemMode) contracts.AccessCheck {
	resolved := resolvePath(target)

	if anyContains(b.denied, resolved) {
		return contracts.AccessCheck{Allowed: false, Reason: "path is inside a denied boundary"}
	}

	switch mode {
	case contracts.ModeWrite:
		if !anyContains(b.writable, resolved) {
			return contracts.AccessCheck{Allowed: false, Reason: "outside writable boundaries"}
		}
	case contracts.ModeRead:
		if !anyContains(b.readable, resolved) {
			return contracts.AccessCheck{Allowed: false, Reason: "outside readable boundaries"}
		}
	}

	return contracts.AccessCheck{Allowed: true, Reason: "within configured boundaries"}
}

var writeTools = map[string]bool{"write": true, "edit": true, "apply_patch": true}
var readTools = map[string]bool{"read": true, "ls": true, "find": true, "grep": true}

// ToolFilesystemMode classifies known write/read tools. Unknown tools
// return nil (no filesystem check applies).
func ToolFilesystemMode(toolName string) *contracts.FilesystemMode {
	if writeTools[toolName] {
		m := contracts.ModeWrite
		return &m
	}
	if readTools[toolName] {
		m := contracts.ModeRead
		return &m
	}
	return nil
}

var pathParamKeys = []string{"path", "file_path", "filePath", "directory", "dir"}

// ExtractToolPath looks up the documented path-shaped keys in params,
// in priority order. Any other keys are ignored — per spec §9, tool
// params are opaque dictionaries.
func ExtractToolPath(params map[string]any) (string, bool) {
	for _, key := range pathParamKeys {
		if v, ok := params[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// ValidateToolFilesystemAccess resolves the tool's filesystem mode and
// target path (if any) and checks it against the boundary. Returns nil
// (skip) when the tool has no mode or no path could be extracted.
func (b *Boundary) ValidateToolFilesystemAccess(toolName string, params map[string]any) *contracts.AccessCheck {
	mode := ToolFilesystemMode(toolName)
	if mode == nil {
		return nil
	}
	path, ok := ExtractToolPath(params)
	if !ok {
		return nil
	}
	check := b.CheckAccess(path, *mode)
	return &check
}
