// Package tools defines the fixed vocabulary of structured actions the
// narrator may request during a turn: character creation, experience
// grants, level-ups and dice rolls. Each tool validates its own arguments
// and returns a typed Effect; errors become error effects, never panics,
// so a bad tool call can degrade a single action without failing the turn.
package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmforge-dev/dmforge/pkg/character"
	"github.com/dmforge-dev/dmforge/pkg/dice"
)

// Tool names the narrator may invoke.
const (
	ToolCreateCharacter = "create_character"
	ToolGrantExperience = "grant_experience"
	ToolLevelUp         = "level_up_character"
	ToolRollDice        = "roll_dice"
)

// DefaultHPIncrease is the max-hit-point gain a level-up tool call takes
// when the narrator does not specify one.
const DefaultHPIncrease = 5

// Definition describes one tool: its name, what it does, and the JSON
// schema of its parameters. Definitions are handed to the narrator as
// function-tool declarations.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Registry holds the tool set and the dice roller they share.
// Execution never mutates session or character state; it only produces
// effects for the session manager to apply.
type Registry struct {
	roller *dice.Roller
}

// NewRegistry creates a registry rolling dice from the given roller.
func NewRegistry(roller *dice.Roller) *Registry {
	return &Registry{roller: roller}
}

func attributeSchema(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// Definitions returns the declared tool set in a stable order.
func (r *Registry) Definitions() []Definition {
	return []Definition{
		{
			Name:        ToolCreateCharacter,
			Description: "Create a new character for the acting player. Use when a player without a character describes who they want to play.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":         map[string]any{"type": "string", "description": "The character's name"},
					"class_type":   map[string]any{"type": "string", "description": "The character's class, e.g. fighter, wizard, rogue"},
					"strength":     attributeSchema("Strength score, defaults to 10"),
					"dexterity":    attributeSchema("Dexterity score, defaults to 10"),
					"constitution": attributeSchema("Constitution score, defaults to 10"),
					"intelligence": attributeSchema("Intelligence score, defaults to 10"),
					"wisdom":       attributeSchema("Wisdom score, defaults to 10"),
					"charisma":     attributeSchema("Charisma score, defaults to 10"),
					"backstory":    map[string]any{"type": "string", "description": "Short backstory, optional"},
				},
				"required": []string{"name", "class_type"},
			},
		},
		{
			Name:        ToolGrantExperience,
			Description: "Award experience points to the acting player's character.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"amount": map[string]any{"type": "integer", "description": "Experience points to award"},
					"reason": map[string]any{"type": "string", "description": "Why the experience was earned"},
				},
				"required": []string{"amount"},
			},
		},
		{
			Name:        ToolLevelUp,
			Description: "Level up the acting player's character. Only works when the character has banked enough experience (100 per current level).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attribute_to_increase": map[string]any{
						"type":        "string",
						"description": "Ability score to raise by one",
						"enum":        []string{"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma"},
					},
					"hp_increase": map[string]any{"type": "integer", "description": "Max hit point gain, defaults to 5"},
				},
				"required": []string{"attribute_to_increase"},
			},
		},
		{
			Name:        ToolRollDice,
			Description: "Roll dice for an uncertain outcome.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"dice_type": map[string]any{
						"type":        "string",
						"description": "Die to roll",
						"enum":        []string{"d4", "d6", "d8", "d10", "d12", "d20", "d100"},
					},
					"count": map[string]any{"type": "integer", "description": "Number of dice, defaults to 1, max 20"},
				},
				"required": []string{"dice_type"},
			},
		},
	}
}

// Execute runs the named tool against raw JSON arguments and returns its
// effect. Unknown tools and malformed arguments come back as ToolError.
func (r *Registry) Execute(name string, rawArgs json.RawMessage) Effect {
	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return ToolError{Tool: name, Message: fmt.Sprintf("malformed arguments: %v", err)}
		}
	}

	switch name {
	case ToolCreateCharacter:
		return r.createCharacter(args)
	case ToolGrantExperience:
		return r.grantExperience(args)
	case ToolLevelUp:
		return r.levelUp(args)
	case ToolRollDice:
		return r.rollDice(args)
	default:
		return ToolError{Tool: name, Message: fmt.Sprintf("unknown tool %q", name)}
	}
}

func (r *Registry) createCharacter(args map[string]any) Effect {
	name, err := stringArg(args, "name")
	if err != nil {
		return ToolError{Tool: ToolCreateCharacter, Message: err.Error()}
	}
	class, err := stringArg(args, "class_type")
	if err != nil {
		return ToolError{Tool: ToolCreateCharacter, Message: err.Error()}
	}

	attrs := character.DefaultAttributes()
	for key, field := range map[string]*int{
		"strength":     &attrs.Strength,
		"dexterity":    &attrs.Dexterity,
		"constitution": &attrs.Constitution,
		"intelligence": &attrs.Intelligence,
		"wisdom":       &attrs.Wisdom,
		"charisma":     &attrs.Charisma,
	} {
		v, ok, err := optionalIntArg(args, key)
		if err != nil {
			return ToolError{Tool: ToolCreateCharacter, Message: err.Error()}
		}
		if ok {
			*field = v
		}
	}

	backstory, _, err := optionalStringArg(args, "backstory")
	if err != nil {
		return ToolError{Tool: ToolCreateCharacter, Message: err.Error()}
	}

	return CharacterCreated{Character: character.New(name, class, attrs, backstory)}
}

func (r *Registry) grantExperience(args map[string]any) Effect {
	amount, ok, err := optionalIntArg(args, "amount")
	if err != nil {
		return ToolError{Tool: ToolGrantExperience, Message: err.Error()}
	}
	if !ok {
		return ToolError{Tool: ToolGrantExperience, Message: `missing required argument "amount"`}
	}

	reason, _, err := optionalStringArg(args, "reason")
	if err != nil {
		return ToolError{Tool: ToolGrantExperience, Message: err.Error()}
	}

	return ExperienceGranted{Amount: amount, Reason: reason}
}

func (r *Registry) levelUp(args map[string]any) Effect {
	name, err := stringArg(args, "attribute_to_increase")
	if err != nil {
		return ToolError{Tool: ToolLevelUp, Message: err.Error()}
	}

	attr, err := character.ParseAttribute(name)
	if err != nil {
		return ToolError{Tool: ToolLevelUp, Message: err.Error()}
	}

	hpIncrease, ok, err := optionalIntArg(args, "hp_increase")
	if err != nil {
		return ToolError{Tool: ToolLevelUp, Message: err.Error()}
	}
	if !ok {
		hpIncrease = DefaultHPIncrease
	}

	return LevelUp{Attribute: attr, HPIncrease: hpIncrease}
}

func (r *Registry) rollDice(args map[string]any) Effect {
	kind, err := stringArg(args, "dice_type")
	if err != nil {
		return ToolError{Tool: ToolRollDice, Message: err.Error()}
	}

	sides, err := parseDieSize(kind)
	if err != nil {
		return ToolError{Tool: ToolRollDice, Message: err.Error()}
	}

	count, ok, err := optionalIntArg(args, "count")
	if err != nil {
		return ToolError{Tool: ToolRollDice, Message: err.Error()}
	}
	if !ok {
		count = 1
	}

	res, err := r.roller.Roll(sides, count)
	if err != nil {
		return ToolError{Tool: ToolRollDice, Message: err.Error()}
	}

	return DiceRolled{Sides: sides, Count: count, Result: res}
}

// parseDieSize accepts "d20" or "20".
func parseDieSize(kind string) (int, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(kind)), "d")
	sides, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unrecognized dice type %q", kind)
	}
	return sides, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok, err := optionalStringArg(args, key)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

func optionalStringArg(args map[string]any, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("argument %q must be a string", key)
	}
	return s, true, nil
}

// optionalIntArg reads an integer argument. JSON numbers decode as float64;
// whole-valued floats are accepted, fractional values are not.
func optionalIntArg(args map[string]any, key string) (int, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false, fmt.Errorf("argument %q must be an integer", key)
		}
		return int(v), true, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false, fmt.Errorf("argument %q must be an integer", key)
		}
		return int(n), true, nil
	default:
		return 0, false, fmt.Errorf("argument %q must be an integer", key)
	}
}
