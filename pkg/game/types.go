// Package game holds session state for AI-narrated tabletop games and the
// manager that owns it: the player roster, the append-only event log, the
// round-robin turn cursor, and each player's character binding.
package game

import (
	"encoding/json"
	"strconv"

	"github.com/dmforge-dev/dmforge/internal/tools"
	"github.com/dmforge-dev/dmforge/pkg/character"
)

// Player identifies a seat in a session, not necessarily a real account.
// Players are immutable once the session is created.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventType marks what a log entry records.
type EventType string

const (
	// EventPlayerMessage records a player's submitted action text.
	EventPlayerMessage EventType = "player_message"
	// EventDMResponse records the narrator's final narration for a turn.
	EventDMResponse EventType = "dm_response"
)

// Event is one entry in the session log. Entries are append-only and
// immutable once appended; IDs are the 1-based log position as a string.
type Event struct {
	ID      string         `json:"id"`
	Type    EventType      `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Binding tracks whether a player has a character, explicitly. A player
// always has a Binding entry; Bound distinguishes "no character yet" from
// a missing map key.
type Binding struct {
	Bound       bool
	CharacterID string
	Character   *character.Character
}

// MarshalJSON renders the binding the way the API exposes it: the character
// itself, or null for an unbound player.
func (b Binding) MarshalJSON() ([]byte, error) {
	if !b.Bound || b.Character == nil {
		return []byte("null"), nil
	}
	return json.Marshal(b.Character)
}

// State is the full mutable state of one session. All mutation goes
// through the Manager, which serializes turns per session.
type State struct {
	ID         string             `json:"game_id"`
	Players    []Player           `json:"players"`
	Characters map[string]Binding `json:"characters"`
	TurnIndex  int                `json:"turn_index"`
	Log        []Event            `json:"logs"`
	Meta       map[string]any     `json:"meta"`
}

// PlayerByID returns the player with the given seat id.
func (s *State) PlayerByID(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Binding returns the character binding for a player seat.
func (s *State) Binding(playerID string) Binding {
	return s.Characters[playerID]
}

// appendEvent appends a new log entry, assigning the next sequential id.
func (s *State) appendEvent(t EventType, payload map[string]any) {
	s.Log = append(s.Log, Event{
		ID:      strconv.Itoa(len(s.Log) + 1),
		Type:    t,
		Payload: payload,
	})
}

// advanceTurn moves the cursor to the next seat in roster order.
// With no players the cursor stays at 0.
func (s *State) advanceTurn() {
	if len(s.Players) > 0 {
		s.TurnIndex = (s.TurnIndex + 1) % len(s.Players)
	}
}

// Clone returns a deep copy of the state. Event payloads are shared:
// events are immutable once appended.
func (s *State) Clone() *State {
	cp := &State{
		ID:         s.ID,
		Players:    append([]Player(nil), s.Players...),
		Characters: make(map[string]Binding, len(s.Characters)),
		TurnIndex:  s.TurnIndex,
		Log:        append([]Event(nil), s.Log...),
		Meta:       make(map[string]any, len(s.Meta)),
	}
	for id, b := range s.Characters {
		if b.Character != nil {
			b.Character = b.Character.Clone()
		}
		cp.Characters[id] = b
	}
	for k, v := range s.Meta {
		cp.Meta[k] = v
	}
	return cp
}

// TurnResult is what a narrator turn produced: the final narration and the
// tool effects to apply. Degraded marks a fallback narration after a
// collaborator failure; a degraded result still carries any effects whose
// tools already ran.
type TurnResult struct {
	Narration string
	Effects   []tools.Effect
	Degraded  bool
}
