package game

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/dmforge-dev/dmforge/internal/observability"
	"github.com/dmforge-dev/dmforge/internal/tools"
	"github.com/dmforge-dev/dmforge/pkg/character"
	metrics "github.com/dmforge-dev/dmforge/pkg/observability"
)

// Narrator is the collaborator that runs one narrated turn: given the
// session state, the acting player and their message, it returns the final
// narration and any tool effects. Implementations must not mutate the
// state they are given.
type Narrator interface {
	TakeTurn(ctx context.Context, state *State, player Player, message string) (*TurnResult, error)
}

// Manager owns every live session: an in-memory cache over the storage
// backend, a per-session mutex serializing turns, and the narrator
// collaborator. It is the sole mutation entry point for session state.
// Manager is safe for concurrent use; turns for different sessions run
// concurrently, turns for the same session never interleave.
type Manager struct {
	backend  StorageBackend
	narrator Narrator

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	janitor *cron.Cron
}

// sessionEntry is one cached session. Its mutex serializes every operation
// touching the session, including the narrator call in the middle of a
// turn.
type sessionEntry struct {
	mu       sync.Mutex
	state    *State
	bindings map[string]string // player id -> character id
	lastUsed time.Time
}

// NewManager creates a session manager over the given backend and narrator.
func NewManager(backend StorageBackend, narrator Narrator) *Manager {
	return &Manager{
		backend:  backend,
		narrator: narrator,
		sessions: make(map[string]*sessionEntry),
	}
}

// CreateSession creates a new session with sequential seat ids "1".."N"
// assigned to the given names in input order.
func (m *Manager) CreateSession(ctx context.Context, playerNames []string) (*State, error) {
	players := make([]Player, 0, len(playerNames))
	characters := make(map[string]Binding, len(playerNames))
	for i, name := range playerNames {
		id := strconv.Itoa(i + 1)
		players = append(players, Player{ID: id, Name: name})
		characters[id] = Binding{}
	}

	state := &State{
		ID:         uuid.New().String(),
		Players:    players,
		Characters: characters,
		TurnIndex:  0,
		Log:        []Event{},
		Meta:       map[string]any{},
	}

	entry := &sessionEntry{
		state:    state,
		bindings: make(map[string]string),
		lastUsed: time.Now(),
	}

	if err := m.persist(ctx, entry); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.sessions[state.ID] = entry
	metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	return state.Clone(), nil
}

// GetSession returns a snapshot of the session state.
// Returns ErrSessionNotFound for an unknown id.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*State, error) {
	entry, err := m.entry(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastUsed = time.Now()

	return entry.state.Clone(), nil
}

// SubmitAction runs one full turn for the acting player: narrator
// invocation, tool effect application, event logging, turn advance, and
// persistence. The turn either fully applies and logs both events or
// leaves the session untouched.
func (m *Manager) SubmitAction(ctx context.Context, sessionID, playerID, message string) (*State, error) {
	entry, err := m.entry(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastUsed = time.Now()

	player, ok := entry.state.PlayerByID(playerID)
	if !ok {
		return nil, fmt.Errorf("%w: %q in session %s", ErrPlayerNotFound, playerID, sessionID)
	}

	ctx, span := observability.StartSpanWithContext(ctx, "game.turn", map[string]any{
		"session_id": sessionID,
		"player_id":  playerID,
	})
	defer span.End()

	res, err := m.narrator.TakeTurn(ctx, entry.state, player, message)
	if err != nil {
		span.SetError(err)
		metrics.RecordTurn("failed")
		return nil, fmt.Errorf("%w: %v", ErrNarratorUnavailable, err)
	}

	// Work on a copy so a persistence failure leaves the live state alone.
	next := entry.state.Clone()
	bindings := cloneBindings(entry.bindings)

	m.applyEffects(ctx, next, bindings, player, res.Effects)

	next.appendEvent(EventPlayerMessage, map[string]any{
		"player_id": playerID,
		"message":   message,
	})
	next.appendEvent(EventDMResponse, map[string]any{
		"message": res.Narration,
	})
	next.advanceTurn()

	if err := m.persistState(ctx, next, bindings); err != nil {
		span.SetError(err)
		metrics.RecordTurn("failed")
		return nil, fmt.Errorf("save session: %w", err)
	}

	entry.state = next
	entry.bindings = bindings

	if res.Degraded {
		metrics.RecordTurn("degraded")
	} else {
		metrics.RecordTurn("ok")
	}

	return next.Clone(), nil
}

// BindCharacter binds a previously persisted character to a player seat.
// Binding over an existing character is rejected with
// ErrCharacterAlreadyBound.
func (m *Manager) BindCharacter(ctx context.Context, sessionID, playerID, characterID string) (*State, error) {
	entry, err := m.entry(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastUsed = time.Now()

	if _, ok := entry.state.PlayerByID(playerID); !ok {
		return nil, fmt.Errorf("%w: %q in session %s", ErrPlayerNotFound, playerID, sessionID)
	}
	if entry.state.Characters[playerID].Bound {
		return nil, ErrCharacterAlreadyBound
	}

	c, err := m.backend.LoadCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}

	next := entry.state.Clone()
	bindings := cloneBindings(entry.bindings)
	next.Characters[playerID] = Binding{Bound: true, CharacterID: characterID, Character: c}
	bindings[playerID] = characterID

	if err := m.persistState(ctx, next, bindings); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	entry.state = next
	entry.bindings = bindings

	return next.Clone(), nil
}

// ListCharacters returns persisted character summaries, optionally
// filtered by owner name.
func (m *Manager) ListCharacters(ctx context.Context, owner string) ([]CharacterSummary, error) {
	return m.backend.ListCharacters(ctx, owner)
}

// LoadCharacter returns a persisted character by id.
func (m *Manager) LoadCharacter(ctx context.Context, characterID string) (*character.Character, error) {
	return m.backend.LoadCharacter(ctx, characterID)
}

// StartJanitor schedules eviction of cached sessions idle longer than
// maxIdle. State is persisted after every turn, so eviction only drops the
// in-memory copy.
func (m *Manager) StartJanitor(schedule string, maxIdle time.Duration) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.evictIdle(maxIdle) }); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	c.Start()
	m.janitor = c
	return nil
}

func (m *Manager) evictIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, entry := range m.sessions {
		// Skip sessions mid-turn.
		if !entry.mu.TryLock() {
			continue
		}
		idle := entry.lastUsed.Before(cutoff)
		entry.mu.Unlock()

		if idle {
			delete(m.sessions, id)
		}
	}
	metrics.SetActiveSessions(len(m.sessions))
}

// Close stops the janitor and closes the backend.
func (m *Manager) Close() error {
	if m.janitor != nil {
		m.janitor.Stop()
	}
	return m.backend.Close()
}

// entry returns the cached session entry, loading from the backend on a
// cache miss.
func (m *Manager) entry(ctx context.Context, sessionID string) (*sessionEntry, error) {
	m.mu.Lock()
	if entry, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return entry, nil
	}
	m.mu.Unlock()

	rec, err := m.backend.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entry, err := m.rehydrate(ctx, rec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have loaded it meanwhile; keep the first copy.
	if existing, ok := m.sessions[sessionID]; ok {
		return existing, nil
	}
	m.sessions[sessionID] = entry
	metrics.SetActiveSessions(len(m.sessions))
	return entry, nil
}

// rehydrate rebuilds live session state from a persisted record, loading
// each bound character.
func (m *Manager) rehydrate(ctx context.Context, rec *SessionRecord) (*sessionEntry, error) {
	characters := make(map[string]Binding, len(rec.Players))
	for _, p := range rec.Players {
		characters[p.ID] = Binding{}
	}
	for playerID, charID := range rec.Bindings {
		c, err := m.backend.LoadCharacter(ctx, charID)
		if err != nil {
			return nil, fmt.Errorf("load character %s: %w", charID, err)
		}
		characters[playerID] = Binding{Bound: true, CharacterID: charID, Character: c}
	}

	meta := rec.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	logs := rec.Log
	if logs == nil {
		logs = []Event{}
	}

	bindings := cloneBindings(rec.Bindings)

	return &sessionEntry{
		state: &State{
			ID:         rec.ID,
			Players:    rec.Players,
			Characters: characters,
			TurnIndex:  rec.TurnIndex,
			Log:        logs,
			Meta:       meta,
		},
		bindings: bindings,
		lastUsed: time.Now(),
	}, nil
}

// applyEffects translates tool effects into character-ledger mutations on
// the acting player's binding. A mechanics violation skips the effect; it
// never fails the turn.
func (m *Manager) applyEffects(ctx context.Context, state *State, bindings map[string]string, player Player, effects []tools.Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case tools.CharacterCreated:
			binding := state.Characters[player.ID]
			if binding.Bound {
				log.Printf("session %s: player %s already has a character, ignoring create_character", state.ID, player.ID)
				metrics.RecordToolCall(tools.ToolCreateCharacter, "skipped")
				continue
			}
			charID, err := m.backend.SaveCharacter(ctx, e.Character, player.Name)
			if err != nil {
				log.Printf("session %s: save character failed: %v", state.ID, err)
				metrics.RecordToolCall(tools.ToolCreateCharacter, "error")
				continue
			}
			state.Characters[player.ID] = Binding{Bound: true, CharacterID: charID, Character: e.Character}
			bindings[player.ID] = charID

		case tools.ExperienceGranted:
			binding := state.Characters[player.ID]
			if !binding.Bound {
				log.Printf("session %s: player %s has no character, ignoring grant_experience", state.ID, player.ID)
				metrics.RecordToolCall(tools.ToolGrantExperience, "skipped")
				continue
			}
			binding.Character.GrantExperience(e.Amount)

		case tools.LevelUp:
			binding := state.Characters[player.ID]
			if !binding.Bound {
				log.Printf("session %s: player %s has no character, ignoring level_up_character", state.ID, player.ID)
				metrics.RecordToolCall(tools.ToolLevelUp, "skipped")
				continue
			}
			if err := binding.Character.ApplyLevelUp(e.Attribute, e.HPIncrease); err != nil {
				log.Printf("session %s: level-up not applied: %v", state.ID, err)
				metrics.RecordToolCall(tools.ToolLevelUp, "skipped")
			}

		case tools.DiceRolled, tools.ToolError:
			// No state change.
		}
	}
}

// persist writes the session record and every bound character.
func (m *Manager) persist(ctx context.Context, entry *sessionEntry) error {
	return m.persistState(ctx, entry.state, entry.bindings)
}

func (m *Manager) persistState(ctx context.Context, state *State, bindings map[string]string) error {
	for playerID, charID := range bindings {
		binding := state.Characters[playerID]
		if !binding.Bound || binding.Character == nil {
			continue
		}
		if err := m.backend.UpdateCharacter(ctx, charID, binding.Character); err != nil {
			return fmt.Errorf("update character %s: %w", charID, err)
		}
	}

	return m.backend.SaveSession(ctx, &SessionRecord{
		ID:        state.ID,
		Players:   state.Players,
		TurnIndex: state.TurnIndex,
		Log:       state.Log,
		Meta:      state.Meta,
		Bindings:  bindings,
	})
}

func cloneBindings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
