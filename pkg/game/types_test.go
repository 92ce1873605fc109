package game

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dmforge-dev/dmforge/pkg/character"
)

func TestState_AdvanceTurn(t *testing.T) {
	s := &State{Players: []Player{{ID: "1"}, {ID: "2"}, {ID: "3"}}}

	want := []int{1, 2, 0, 1}
	for i, w := range want {
		s.advanceTurn()
		if s.TurnIndex != w {
			t.Errorf("after %d advances TurnIndex = %d, want %d", i+1, s.TurnIndex, w)
		}
	}
}

func TestState_AdvanceTurn_NoPlayers(t *testing.T) {
	s := &State{}
	s.advanceTurn()
	if s.TurnIndex != 0 {
		t.Errorf("TurnIndex = %d, want 0", s.TurnIndex)
	}
}

func TestState_AppendEvent_SequentialIDs(t *testing.T) {
	s := &State{Log: []Event{}}

	s.appendEvent(EventPlayerMessage, map[string]any{"message": "one"})
	s.appendEvent(EventDMResponse, map[string]any{"message": "two"})
	s.appendEvent(EventPlayerMessage, map[string]any{"message": "three"})

	for i, want := range []string{"1", "2", "3"} {
		if s.Log[i].ID != want {
			t.Errorf("event %d id = %s, want %s", i, s.Log[i].ID, want)
		}
	}
}

func TestState_Clone_Independent(t *testing.T) {
	c := character.New("Thorin", "fighter", character.DefaultAttributes(), "")
	s := &State{
		ID:      "game-1",
		Players: []Player{{ID: "1", Name: "Alice"}},
		Characters: map[string]Binding{
			"1": {Bound: true, CharacterID: "char-1", Character: c},
		},
		Log:  []Event{{ID: "1", Type: EventPlayerMessage, Payload: map[string]any{"message": "hi"}}},
		Meta: map[string]any{"setting": "keep"},
	}

	clone := s.Clone()
	clone.Characters["1"].Character.GrantExperience(100)
	clone.appendEvent(EventDMResponse, map[string]any{"message": "more"})
	clone.Meta["extra"] = true

	if s.Characters["1"].Character.Experience != 0 {
		t.Error("clone shares character with original")
	}
	if len(s.Log) != 1 {
		t.Error("clone shares log with original")
	}
	if _, ok := s.Meta["extra"]; ok {
		t.Error("clone shares meta with original")
	}
}

func TestBinding_MarshalJSON(t *testing.T) {
	unbound, err := json.Marshal(Binding{})
	if err != nil {
		t.Fatalf("marshal unbound: %v", err)
	}
	if string(unbound) != "null" {
		t.Errorf("unbound binding = %s, want null", unbound)
	}

	c := character.New("Thorin", "fighter", character.DefaultAttributes(), "")
	bound, err := json.Marshal(Binding{Bound: true, CharacterID: "char-1", Character: c})
	if err != nil {
		t.Fatalf("marshal bound: %v", err)
	}
	if !strings.Contains(string(bound), `"name":"Thorin"`) {
		t.Errorf("bound binding = %s, want the character sheet", bound)
	}
}

func TestState_JSONShape(t *testing.T) {
	s := &State{
		ID:         "game-1",
		Players:    []Player{{ID: "1", Name: "Alice"}},
		Characters: map[string]Binding{"1": {}},
		Log:        []Event{},
		Meta:       map[string]any{},
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	for _, key := range []string{"game_id", "players", "characters", "turn_index", "logs", "meta"} {
		if _, ok := out[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
}
