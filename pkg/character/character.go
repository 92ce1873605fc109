// Package character owns all character progression arithmetic: hit point
// derivation, experience bookkeeping and level-up thresholds. It knows
// nothing about narration or sessions, which keeps the game math
// independently testable.
package character

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors for progression operations.
var (
	// ErrInsufficientExperience is returned when a level-up is attempted
	// before the character has banked enough experience.
	ErrInsufficientExperience = errors.New("insufficient experience for level-up")
	// ErrUnknownAttribute is returned for an attribute name outside the six
	// ability scores.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// Attribute identifies one of the six ability scores.
type Attribute string

const (
	Strength     Attribute = "strength"
	Dexterity    Attribute = "dexterity"
	Constitution Attribute = "constitution"
	Intelligence Attribute = "intelligence"
	Wisdom       Attribute = "wisdom"
	Charisma     Attribute = "charisma"
)

// accessors maps each attribute to its typed field accessor. Keeping the
// dispatch in one table means a new attribute cannot be half-wired.
var accessors = map[Attribute]func(*Character) *int{
	Strength:     func(c *Character) *int { return &c.Strength },
	Dexterity:    func(c *Character) *int { return &c.Dexterity },
	Constitution: func(c *Character) *int { return &c.Constitution },
	Intelligence: func(c *Character) *int { return &c.Intelligence },
	Wisdom:       func(c *Character) *int { return &c.Wisdom },
	Charisma:     func(c *Character) *int { return &c.Charisma },
}

// ParseAttribute resolves a case-insensitive attribute name.
func ParseAttribute(name string) (Attribute, error) {
	attr := Attribute(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := accessors[attr]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return attr, nil
}

// DefaultScore is the value an unspecified ability score takes.
const DefaultScore = 10

// Attributes holds the six ability scores for character creation.
type Attributes struct {
	Strength     int
	Dexterity    int
	Constitution int
	Intelligence int
	Wisdom       int
	Charisma     int
}

// DefaultAttributes returns all six scores at DefaultScore.
func DefaultAttributes() Attributes {
	return Attributes{
		Strength:     DefaultScore,
		Dexterity:    DefaultScore,
		Constitution: DefaultScore,
		Intelligence: DefaultScore,
		Wisdom:       DefaultScore,
		Charisma:     DefaultScore,
	}
}

// Character is a player character bound to exactly one player within a
// session. Scores are accepted as-is, including values outside the
// conventional 3-18 range; validation is the caller's concern.
type Character struct {
	Name         string `json:"name"`
	Class        string `json:"class_type"`
	Level        int    `json:"level"`
	Experience   int    `json:"experience"`
	Strength     int    `json:"strength"`
	Dexterity    int    `json:"dexterity"`
	Constitution int    `json:"constitution"`
	Intelligence int    `json:"intelligence"`
	Wisdom       int    `json:"wisdom"`
	Charisma     int    `json:"charisma"`
	HitPoints    int    `json:"hit_points"`
	MaxHitPoints int    `json:"max_hit_points"`
	Backstory    string `json:"backstory,omitempty"`
}

// New creates a level 1 character with zero experience.
// Hit points start at 10 + constitution.
func New(name, class string, attrs Attributes, backstory string) *Character {
	hp := 10 + attrs.Constitution
	return &Character{
		Name:         name,
		Class:        class,
		Level:        1,
		Experience:   0,
		Strength:     attrs.Strength,
		Dexterity:    attrs.Dexterity,
		Constitution: attrs.Constitution,
		Intelligence: attrs.Intelligence,
		Wisdom:       attrs.Wisdom,
		Charisma:     attrs.Charisma,
		HitPoints:    hp,
		MaxHitPoints: hp,
		Backstory:    backstory,
	}
}

// ExperienceToLevel returns the experience required to advance from the
// given level to the next: 100 per current level, no curve.
func ExperienceToLevel(level int) int {
	return 100 * level
}

// GrantExperience adds experience points. Callers are expected to pass
// non-negative amounts; this layer does not enforce it.
func (c *Character) GrantExperience(amount int) {
	c.Experience += amount
}

// CanLevelUp reports whether the character has banked enough experience to
// advance past its current level.
func (c *Character) CanLevelUp() bool {
	return c.Experience >= ExperienceToLevel(c.Level)
}

// ApplyLevelUp advances the character one level, spending the required
// experience, raising max hit points by hpIncrease, fully healing, and
// incrementing the named attribute by one.
//
// Sufficiency is re-checked here, at the moment of application; if the
// character cannot afford the level the character is left untouched and
// ErrInsufficientExperience is returned so the caller never reports a
// level-up that did not happen. An unrecognized attribute is likewise a
// no-op with ErrUnknownAttribute.
func (c *Character) ApplyLevelUp(attr Attribute, hpIncrease int) error {
	field, ok := accessors[attr]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}

	required := ExperienceToLevel(c.Level)
	if c.Experience < required {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientExperience, required, c.Experience)
	}

	c.Experience -= required
	c.Level++
	c.MaxHitPoints += hpIncrease
	c.HitPoints = c.MaxHitPoints
	*field(c)++
	return nil
}

// Clone returns a deep copy of the character.
func (c *Character) Clone() *Character {
	cp := *c
	return &cp
}
