package session

import (
	"path/filepath"
	"regexp"
	"strings"
)

// libEntrypoint matches the lib/<file>.dart part of a Dart program path
var libEntrypoint = regexp.MustCompile(`/lib/.*\.dart`)

// DeriveLabel turns a launch program path into a session label: the path is
// made relative to workspaceRoot (when it lies inside it) and the
// /lib/....dart suffix is dropped, so workspace/app/lib/main.dart becomes app.
func DeriveLabel(workspaceRoot, program string) string {
	return libEntrypoint.ReplaceAllString(relativePath(workspaceRoot, program), "")
}

func relativePath(root, path string) string {
	if root == "" || path == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
