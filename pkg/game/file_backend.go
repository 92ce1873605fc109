package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmforge-dev/dmforge/pkg/character"
)

// ErrInvalidPathComponent is returned when an id contains unsafe characters.
var ErrInvalidPathComponent = errors.New("invalid path component: contains path separator or traversal sequence")

// validatePathComponent checks that a string is safe to use as a path
// component. It rejects empty strings, path separators, and traversal
// sequences.
func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidPathComponent
	}
	return nil
}

// FileBackend implements StorageBackend using JSON files, suitable for
// local play and tests. Storage layout:
//
//	<baseDir>/
//	  ├── sessions/<session-id>.json
//	  └── characters/<character-id>.json
type FileBackend struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileBackend creates a new file-based storage backend.
// If baseDir is empty, uses ~/.dmforge.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".dmforge")
	}

	for _, dir := range []string{baseDir, filepath.Join(baseDir, "sessions"), filepath.Join(baseDir, "characters")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	return &FileBackend{baseDir: baseDir}, nil
}

func (f *FileBackend) sessionPath(sessionID string) string {
	return filepath.Join(f.baseDir, "sessions", sessionID+".json")
}

func (f *FileBackend) characterPath(characterID string) string {
	return filepath.Join(f.baseDir, "characters", characterID+".json")
}

// SaveSession creates or replaces a session record. The write is atomic:
// a temp file renamed over the target, so a crash never leaves a
// half-written session.
func (f *FileBackend) SaveSession(ctx context.Context, rec *SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}
	if err := validatePathComponent(rec.ID); err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	return writeJSONAtomic(f.sessionPath(rec.ID), rec)
}

// LoadSession retrieves a session record by id.
func (f *FileBackend) LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStorageClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session ID: %w", err)
	}

	data, err := os.ReadFile(f.sessionPath(sessionID)) // #nosec G304 - path component validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}

	return &rec, nil
}

// SaveCharacter persists a new character and returns its assigned id.
func (f *FileBackend) SaveCharacter(ctx context.Context, c *character.Character, owner string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", ErrStorageClosed
	}

	now := time.Now().UTC()
	rec := characterRecord{
		ID:        uuid.New().String(),
		Owner:     owner,
		Character: c,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := writeJSONAtomic(f.characterPath(rec.ID), rec); err != nil {
		return "", err
	}

	return rec.ID, nil
}

// UpdateCharacter replaces an existing character's state.
func (f *FileBackend) UpdateCharacter(ctx context.Context, characterID string, c *character.Character) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}

	rec, err := f.loadCharacterRecord(characterID)
	if err != nil {
		return err
	}

	rec.Character = c
	rec.UpdatedAt = time.Now().UTC()

	return writeJSONAtomic(f.characterPath(characterID), rec)
}

// LoadCharacter retrieves a character by id.
func (f *FileBackend) LoadCharacter(ctx context.Context, characterID string) (*character.Character, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStorageClosed
	}

	rec, err := f.loadCharacterRecord(characterID)
	if err != nil {
		return nil, err
	}
	return rec.Character, nil
}

// ListCharacters returns summaries of a player's characters, or of every
// character when owner is empty.
func (f *FileBackend) ListCharacters(ctx context.Context, owner string) ([]CharacterSummary, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStorageClosed
	}

	entries, err := os.ReadDir(filepath.Join(f.baseDir, "characters"))
	if err != nil {
		if os.IsNotExist(err) {
			return []CharacterSummary{}, nil
		}
		return nil, fmt.Errorf("read characters directory: %w", err)
	}

	summaries := make([]CharacterSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		rec, err := f.loadCharacterRecord(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		if owner != "" && rec.Owner != owner {
			continue
		}

		summaries = append(summaries, CharacterSummary{
			ID:    rec.ID,
			Owner: rec.Owner,
			Name:  rec.Character.Name,
			Class: rec.Character.Class,
			Level: rec.Character.Level,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}

// Close releases any resources held by the backend.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

// loadCharacterRecord is an internal helper; caller must hold a lock.
func (f *FileBackend) loadCharacterRecord(characterID string) (*characterRecord, error) {
	if err := validatePathComponent(characterID); err != nil {
		return nil, fmt.Errorf("invalid character ID: %w", err)
	}

	data, err := os.ReadFile(f.characterPath(characterID)) // #nosec G304 - path component validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("read character: %w", err)
	}

	var rec characterRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse character: %w", err)
	}

	return &rec, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace record: %w", err)
	}

	return nil
}
