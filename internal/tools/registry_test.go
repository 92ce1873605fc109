package tools

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmforge-dev/dmforge/pkg/character"
	"github.com/dmforge-dev/dmforge/pkg/dice"
)

func newTestRegistry() *Registry {
	return NewRegistry(dice.NewRollerFromSource(rand.New(rand.NewSource(1))))
}

func execute(t *testing.T, reg *Registry, tool string, args map[string]any) Effect {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return reg.Execute(tool, raw)
}

func TestDefinitionsCoverAllTools(t *testing.T) {
	defs := newTestRegistry().Definitions()

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
		assert.NotEmpty(t, d.Description)
		assert.Equal(t, "object", d.Parameters["type"])
	}
	assert.Equal(t, []string{ToolCreateCharacter, ToolGrantExperience, ToolLevelUp, ToolRollDice}, names)
}

func TestCreateCharacter(t *testing.T) {
	eff := execute(t, newTestRegistry(), ToolCreateCharacter, map[string]any{
		"name":         "Thorin",
		"class_type":   "fighter",
		"constitution": 12,
		"backstory":    "a gruff dwarf",
	})

	created, ok := eff.(CharacterCreated)
	require.True(t, ok, "got %T", eff)

	c := created.Character
	assert.Equal(t, "Thorin", c.Name)
	assert.Equal(t, "fighter", c.Class)
	assert.Equal(t, 22, c.HitPoints)
	assert.Equal(t, 22, c.MaxHitPoints)
	assert.Equal(t, 10, c.Strength, "unspecified scores default to 10")
	assert.Equal(t, 1, c.Level)
	assert.Equal(t, 0, c.Experience)
}

func TestCreateCharacterMissingName(t *testing.T) {
	eff := execute(t, newTestRegistry(), ToolCreateCharacter, map[string]any{
		"class_type": "fighter",
	})

	toolErr, ok := eff.(ToolError)
	require.True(t, ok, "got %T", eff)
	assert.Contains(t, toolErr.Message, "name")
}

func TestGrantExperience(t *testing.T) {
	eff := execute(t, newTestRegistry(), ToolGrantExperience, map[string]any{
		"amount": 50,
		"reason": "clever negotiation",
	})

	granted, ok := eff.(ExperienceGranted)
	require.True(t, ok, "got %T", eff)
	assert.Equal(t, 50, granted.Amount)
	assert.Equal(t, "clever negotiation", granted.Reason)
}

func TestGrantExperienceMissingAmount(t *testing.T) {
	eff := execute(t, newTestRegistry(), ToolGrantExperience, map[string]any{})

	_, ok := eff.(ToolError)
	assert.True(t, ok, "got %T", eff)
}

func TestLevelUpDefaults(t *testing.T) {
	eff := execute(t, newTestRegistry(), ToolLevelUp, map[string]any{
		"attribute_to_increase": "Strength",
	})

	lvl, ok := eff.(LevelUp)
	require.True(t, ok, "got %T", eff)
	assert.Equal(t, character.Strength, lvl.Attribute, "attribute names are case-insensitive")
	assert.Equal(t, DefaultHPIncrease, lvl.HPIncrease)
}

func TestLevelUpUnknownAttribute(t *testing.T) {
	eff := execute(t, newTestRegistry(), ToolLevelUp, map[string]any{
		"attribute_to_increase": "luck",
	})

	toolErr, ok := eff.(ToolError)
	require.True(t, ok, "got %T", eff)
	assert.Contains(t, toolErr.Message, "luck")
}

func TestRollDice(t *testing.T) {
	eff := execute(t, newTestRegistry(), ToolRollDice, map[string]any{
		"dice_type": "d20",
		"count":     3,
	})

	rolled, ok := eff.(DiceRolled)
	require.True(t, ok, "got %T", eff)
	assert.Equal(t, 20, rolled.Sides)
	assert.Len(t, rolled.Result.Rolls, 3)

	sum := 0
	for _, v := range rolled.Result.Rolls {
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 20)
		sum += v
	}
	assert.Equal(t, sum, rolled.Result.Total)
}

func TestRollDiceDefaultsToOneDie(t *testing.T) {
	eff := execute(t, newTestRegistry(), ToolRollDice, map[string]any{
		"dice_type": "d6",
	})

	rolled, ok := eff.(DiceRolled)
	require.True(t, ok, "got %T", eff)
	assert.Len(t, rolled.Result.Rolls, 1)
}

func TestRollDiceInvalid(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"unknown die", map[string]any{"dice_type": "d7"}},
		{"garbage die", map[string]any{"dice_type": "twenty"}},
		{"count too high", map[string]any{"dice_type": "d6", "count": 21}},
		{"count zero", map[string]any{"dice_type": "d6", "count": 0}},
		{"missing die", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff := execute(t, newTestRegistry(), ToolRollDice, tt.args)
			_, ok := eff.(ToolError)
			assert.True(t, ok, "got %T", eff)
		})
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	eff := newTestRegistry().Execute("summon_dragon", nil)

	toolErr, ok := eff.(ToolError)
	require.True(t, ok, "got %T", eff)
	assert.Contains(t, toolErr.Message, "summon_dragon")
}

func TestExecuteMalformedArguments(t *testing.T) {
	eff := newTestRegistry().Execute(ToolRollDice, json.RawMessage(`{not json`))

	_, ok := eff.(ToolError)
	assert.True(t, ok, "got %T", eff)
}

func TestEffectPayloads(t *testing.T) {
	reg := newTestRegistry()

	eff := execute(t, reg, ToolRollDice, map[string]any{"dice_type": "d8", "count": 2})
	payload := eff.Payload()
	assert.Equal(t, "rolled", payload["status"])
	assert.Equal(t, 8, payload["sides"])

	eff = execute(t, reg, ToolRollDice, map[string]any{"dice_type": "d7"})
	payload = eff.Payload()
	assert.Equal(t, "error", payload["status"])
	assert.NotEmpty(t, payload["error"])
}
