package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Entries is the raw string-keyed layout of one storage area: access token,
// refresh token, stringified expiry, serialized profile JSON, and a bare
// user-id marker for the tokenless session mode.
type Entries struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	Profile      string `json:"user_profile,omitempty"`
	UserID       string `json:"user_id,omitempty"`
}

func (e Entries) empty() bool {
	return e == Entries{}
}

// Area is one of the two key-value persistence areas backing a Store.
// Load treats missing or malformed content as absent, never as an error.
type Area interface {
	Load() (Entries, error)
	Store(Entries) error
	Clear() error
}

// MemoryArea is the session-only area: it lives for the process lifetime
// and is gone when the CLI exits, like browser sessionStorage.
type MemoryArea struct {
	mu      sync.Mutex
	entries Entries
}

// NewMemoryArea creates an empty in-memory area.
func NewMemoryArea() *MemoryArea {
	return &MemoryArea{}
}

func (a *MemoryArea) Load() (Entries, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries, nil
}

func (a *MemoryArea) Store(e Entries) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = e
	return nil
}

func (a *MemoryArea) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = Entries{}
	return nil
}

// FileArea is the persistent area: a JSON file guarded by a lock file so
// multiple CLI processes can share it, written atomically via temp+rename.
type FileArea struct {
	path string
}

// NewFileArea creates a persistent area backed by the file at path.
func NewFileArea(path string) *FileArea {
	return &FileArea{path: path}
}

// Load reads the area file. A missing or unparseable file reads as empty;
// only real I/O failures (e.g. permissions) surface as errors.
func (a *FileArea) Load() (Entries, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entries{}, nil
		}
		return Entries{}, fmt.Errorf("failed to read session file: %w", err)
	}

	var e Entries
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt file: treat as absent rather than blocking authentication.
		return Entries{}, nil
	}
	return e, nil
}

// Store replaces the area content under the file lock.
func (a *FileArea) Store(e Entries) error {
	lock, err := acquireFileLock(a.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "failed to release lock: %v\n", releaseErr)
		}
	}()

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first (atomic write pattern), 0600 since this
	// holds credentials.
	tempFile := a.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, a.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err, removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Clear removes the area file. Clearing an already-empty area succeeds.
func (a *FileArea) Clear() error {
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
