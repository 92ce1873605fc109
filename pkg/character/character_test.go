package character

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesHitPoints(t *testing.T) {
	attrs := DefaultAttributes()
	attrs.Constitution = 12

	c := New("Thorin", "fighter", attrs, "a gruff dwarf")

	assert.Equal(t, 1, c.Level)
	assert.Equal(t, 0, c.Experience)
	assert.Equal(t, 22, c.HitPoints)
	assert.Equal(t, 22, c.MaxHitPoints)
	assert.Equal(t, "a gruff dwarf", c.Backstory)
}

func TestDefaultAttributes(t *testing.T) {
	c := New("Mira", "wizard", DefaultAttributes(), "")

	assert.Equal(t, 10, c.Strength)
	assert.Equal(t, 10, c.Dexterity)
	assert.Equal(t, 10, c.Constitution)
	assert.Equal(t, 10, c.Intelligence)
	assert.Equal(t, 10, c.Wisdom)
	assert.Equal(t, 10, c.Charisma)
	assert.Equal(t, 20, c.HitPoints)
}

func TestNewAcceptsUnconventionalScores(t *testing.T) {
	attrs := DefaultAttributes()
	attrs.Constitution = 30

	c := New("Grond", "barbarian", attrs, "")
	assert.Equal(t, 40, c.MaxHitPoints)
}

func TestGrantExperience(t *testing.T) {
	c := New("Mira", "wizard", DefaultAttributes(), "")

	c.GrantExperience(150)
	assert.Equal(t, 150, c.Experience)

	c.GrantExperience(50)
	assert.Equal(t, 200, c.Experience)
}

func TestApplyLevelUp(t *testing.T) {
	c := New("Thorin", "fighter", DefaultAttributes(), "")
	c.Level = 2
	c.Experience = 250
	c.GrantExperience(50) // 300 total, required 100*2=200

	err := c.ApplyLevelUp(Strength, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, c.Level)
	assert.Equal(t, 100, c.Experience)
	assert.Equal(t, 25, c.MaxHitPoints)
	assert.Equal(t, c.MaxHitPoints, c.HitPoints, "level-up fully heals")
	assert.Equal(t, 11, c.Strength)
}

func TestApplyLevelUpInsufficientExperience(t *testing.T) {
	c := New("Mira", "wizard", DefaultAttributes(), "")
	c.Level = 3
	c.Experience = 50

	before := *c
	err := c.ApplyLevelUp(Wisdom, 5)

	require.ErrorIs(t, err, ErrInsufficientExperience)
	assert.Equal(t, before, *c, "failed level-up must be a no-op")
}

func TestApplyLevelUpUnknownAttribute(t *testing.T) {
	c := New("Mira", "wizard", DefaultAttributes(), "")
	c.Experience = 500

	before := *c
	err := c.ApplyLevelUp(Attribute("luck"), 5)

	require.ErrorIs(t, err, ErrUnknownAttribute)
	assert.Equal(t, before, *c)
}

func TestApplyLevelUpEachAttribute(t *testing.T) {
	for _, attr := range []Attribute{Strength, Dexterity, Constitution, Intelligence, Wisdom, Charisma} {
		t.Run(string(attr), func(t *testing.T) {
			c := New("Test", "rogue", DefaultAttributes(), "")
			c.Experience = 100

			require.NoError(t, c.ApplyLevelUp(attr, 5))
			assert.Equal(t, 2, c.Level)

			field := accessors[attr]
			assert.Equal(t, 11, *field(c))
		})
	}
}

func TestParseAttribute(t *testing.T) {
	tests := []struct {
		in      string
		want    Attribute
		wantErr bool
	}{
		{"strength", Strength, false},
		{"Strength", Strength, false},
		{"  CHARISMA ", Charisma, false},
		{"dexterity", Dexterity, false},
		{"luck", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAttribute(tt.in)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrUnknownAttribute), "ParseAttribute(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseAttribute(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestExperienceToLevel(t *testing.T) {
	assert.Equal(t, 100, ExperienceToLevel(1))
	assert.Equal(t, 200, ExperienceToLevel(2))
	assert.Equal(t, 900, ExperienceToLevel(9))
}
