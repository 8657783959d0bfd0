package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Workspace manages per-run session directories under the OS temp dir.
// Each session owns the uploaded original and the produced funny PDF;
// ownership of the artifacts transfers to the caller once a run ends.
type Workspace struct {
	base string
}

// NewWorkspace creates (if needed) the workspace base directory.
func NewWorkspace() (*Workspace, error) {
	base := filepath.Join(os.TempDir(), "funnypdf")
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace dir: %w", err)
	}
	return &Workspace{base: base}, nil
}

// NewSession allocates a fresh session directory and returns its ID
// and absolute path.
func (w *Workspace) NewSession() (string, string, error) {
	id := uuid.New().String()
	dir := filepath.Join(w.base, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("creating session dir: %w", err)
	}
	return id, dir, nil
}

// SessionDir resolves an existing session by ID. The ID must be a
// valid UUID, which also rules out path traversal.
func (w *Workspace) SessionDir(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid session id")
	}
	dir := filepath.Join(w.base, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("session not found")
	}
	return dir, nil
}

// CleanupOlderThan removes session directories older than maxAge.
// Intended to run periodically from main.
func (w *Workspace) CleanupOlderThan(maxAge time.Duration) {
	entries, err := os.ReadDir(w.base)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.RemoveAll(filepath.Join(w.base, e.Name()))
		}
	}
}
