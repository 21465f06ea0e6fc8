package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CopyChunkSize is the buffer size for streaming attachment bodies to disk,
// bounding peak memory for large files.
const CopyChunkSize = 1024

// Manager handles file writes under one export root. Directories are created
// lazily, on the first write into them, so a user with no history never gets
// an empty directory.
type Manager struct {
	root    string
	mu      sync.Mutex
	created map[string]bool
}

// NewManager creates a Manager rooted at the given directory. Nothing is
// created on disk until the first write.
func NewManager(root string) *Manager {
	return &Manager{
		root:    root,
		created: make(map[string]bool),
	}
}

// Root returns the export root path.
func (m *Manager) Root() string {
	return m.root
}

// EnsureDir creates (once) and returns the directory for a conversation
// counterpart.
func (m *Manager) EnsureDir(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Join(m.root, name)
	if m.created[dir] {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	m.created[dir] = true
	return dir, nil
}

// WriteFile writes data into the counterpart's directory, creating it if
// needed.
func (m *Manager) WriteFile(counterpart, name string, data []byte) error {
	dir, err := m.EnsureDir(counterpart)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SaveStream copies r into the counterpart's directory in fixed-size chunks,
// writing to a temporary file first and renaming into place. Two attachments
// with colliding basenames overwrite each other; the name the uploader gave
// the file wins over uniqueness.
func (m *Manager) SaveStream(counterpart, name string, r io.Reader) (int64, error) {
	dir, err := m.EnsureDir(counterpart)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(dir, name)

	tempPath := path + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tempPath, err)
	}

	buf := make([]byte, CopyChunkSize)
	written, err := io.CopyBuffer(out, r, buf)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempPath)
		return written, fmt.Errorf("failed to save %s: %w", path, err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return written, fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return written, fmt.Errorf("failed to rename %s: %w", tempPath, err)
	}
	return written, nil
}
