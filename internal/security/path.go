// Package security validates user-supplied file paths before the ingestion
// commands touch the filesystem. It exists to stop path traversal (CWE-22):
// an indexing request must never read outside the directories the operator
// allowed.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator restricts file access to a set of allowed directories.
// With no explicit directories, only the working directory is allowed.
type PathValidator struct {
	allowedDirs []string
	workDir     string
}

// NewPathValidator creates a validator for the given directories.
func NewPathValidator(allowedDirs []string) (*PathValidator, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	abs := make([]string, 0, len(allowedDirs))
	for _, dir := range allowedDirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving directory %s: %w", dir, err)
		}
		abs = append(abs, absDir)
	}

	return &PathValidator{allowedDirs: abs, workDir: workDir}, nil
}

// Validate cleans a path and checks it falls inside an allowed directory.
// Returns the resolved absolute path.
func (v *PathValidator) Validate(path string) (string, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if within(absPath, v.workDir) {
		return absPath, nil
	}
	for _, dir := range v.allowedDirs {
		if within(absPath, dir) {
			return absPath, nil
		}
	}
	return "", fmt.Errorf("path %q is outside the allowed directories", path)
}

// within reports whether path is dir itself or a descendant of it.
func within(path, dir string) bool {
	dir = filepath.Clean(dir)
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
