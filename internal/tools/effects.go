package tools

import (
	"github.com/dmforge-dev/dmforge/pkg/character"
	"github.com/dmforge-dev/dmforge/pkg/dice"
)

// Effect is the typed result of one tool invocation. Effects are transient:
// the registry produces them without touching any shared state, and the
// session manager decides what each one does to the game.
type Effect interface {
	// Payload returns the machine-readable result that is fed back to the
	// narrator as the tool call's output.
	Payload() map[string]any

	isEffect()
}

// CharacterCreated reports a freshly created character to bind to the
// acting player.
type CharacterCreated struct {
	Character *character.Character
}

func (e CharacterCreated) isEffect() {}

func (e CharacterCreated) Payload() map[string]any {
	return map[string]any{
		"status":         "created",
		"name":           e.Character.Name,
		"class_type":     e.Character.Class,
		"level":          e.Character.Level,
		"hit_points":     e.Character.HitPoints,
		"max_hit_points": e.Character.MaxHitPoints,
	}
}

// ExperienceGranted reports experience awarded to the acting player's
// character.
type ExperienceGranted struct {
	Amount int
	Reason string
}

func (e ExperienceGranted) isEffect() {}

func (e ExperienceGranted) Payload() map[string]any {
	return map[string]any{
		"status": "granted",
		"amount": e.Amount,
		"reason": e.Reason,
	}
}

// LevelUp requests a level advance for the acting player's character.
// Whether it actually applies depends on the character's banked experience
// at the moment the manager applies it.
type LevelUp struct {
	Attribute  character.Attribute
	HPIncrease int
}

func (e LevelUp) isEffect() {}

func (e LevelUp) Payload() map[string]any {
	return map[string]any{
		"status":      "requested",
		"attribute":   string(e.Attribute),
		"hp_increase": e.HPIncrease,
	}
}

// DiceRolled reports the outcome of a dice roll. It carries no state change.
type DiceRolled struct {
	Sides  int
	Count  int
	Result dice.Result
}

func (e DiceRolled) isEffect() {}

func (e DiceRolled) Payload() map[string]any {
	return map[string]any{
		"status": "rolled",
		"dice":   e.Count,
		"sides":  e.Sides,
		"rolls":  e.Result.Rolls,
		"total":  e.Result.Total,
	}
}

// ToolError reports a tool invocation that could not be executed, usually
// malformed arguments. It never fails the turn; the narrator sees the
// message and carries on.
type ToolError struct {
	Tool    string
	Message string
}

func (e ToolError) isEffect() {}

func (e ToolError) Payload() map[string]any {
	return map[string]any{
		"status": "error",
		"error":  e.Message,
	}
}
