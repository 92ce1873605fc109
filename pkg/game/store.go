package game

import (
	"context"
	"errors"

	"github.com/dmforge-dev/dmforge/pkg/character"
)

// Common errors for session and character operations.
var (
	// ErrSessionNotFound is returned when a session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCharacterNotFound is returned when a character doesn't exist.
	ErrCharacterNotFound = errors.New("character not found")
	// ErrPlayerNotFound is returned when a seat id is not part of a session.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrCharacterAlreadyBound is returned when a player who already has a
	// character would be given another one.
	ErrCharacterAlreadyBound = errors.New("player already has a character")
	// ErrNarratorUnavailable wraps narrator collaborator failures that could
	// not be degraded. Distinct from ErrSessionNotFound so callers can map it
	// to a transient failure.
	ErrNarratorUnavailable = errors.New("narrator unavailable")
	// ErrStorageClosed is returned when operating on a closed storage backend.
	ErrStorageClosed = errors.New("storage backend is closed")
)

// CharacterSummary is the listing view of a persisted character.
type CharacterSummary struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Class string `json:"class_type"`
	Level int    `json:"level"`
}

// SessionRecord is what a backend persists for one session: everything in
// State except the live character objects, which are stored separately and
// referenced through the bindings table.
type SessionRecord struct {
	ID        string            `json:"game_id"`
	Players   []Player          `json:"players"`
	TurnIndex int               `json:"turn_index"`
	Log       []Event           `json:"logs"`
	Meta      map[string]any    `json:"meta"`
	Bindings  map[string]string `json:"bindings"` // player id -> character id
}

// StorageBackend abstracts durable persistence for sessions and characters.
// Saves are idempotent upserts keyed by session id and character id;
// repeated identical writes must not duplicate anything.
// Implementations must be safe for concurrent use.
type StorageBackend interface {
	// SaveSession creates or replaces a session record.
	SaveSession(ctx context.Context, rec *SessionRecord) error

	// LoadSession retrieves a session record by id.
	// Returns ErrSessionNotFound if the session doesn't exist.
	LoadSession(ctx context.Context, sessionID string) (*SessionRecord, error)

	// SaveCharacter persists a new character owned by the named player and
	// returns its assigned id.
	SaveCharacter(ctx context.Context, c *character.Character, owner string) (string, error)

	// UpdateCharacter replaces an existing character's state.
	// Returns ErrCharacterNotFound if the character doesn't exist.
	UpdateCharacter(ctx context.Context, characterID string, c *character.Character) error

	// LoadCharacter retrieves a character by id.
	// Returns ErrCharacterNotFound if the character doesn't exist.
	LoadCharacter(ctx context.Context, characterID string) (*character.Character, error)

	// ListCharacters returns summaries of the characters owned by a player,
	// or all characters when owner is empty.
	ListCharacters(ctx context.Context, owner string) ([]CharacterSummary, error)

	// Close releases any resources held by the backend.
	Close() error
}
