package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/skirmish/internal/engine"
)

func TestCheck(t *testing.T) {
	ev, err := NewEvaluator(&engine.SequenceRNG{Ints: []int{4}})
	require.NoError(t, err)

	mage := engine.NewCombatant("mage", "Mage", engine.FactionPlayer, 30)
	mage.Stats["intelligence"] = 16
	mage.Resources["mana"] = engine.Resource{Current: 12, Max: 20}
	goblin := engine.NewCombatant("gob", "Goblin", engine.FactionEnemy, 10)
	goblin.Effects = append(goblin.Effects, &engine.EffectInstance{EffectID: "burning", Stacks: 1, MaxStacks: 1})

	tests := []struct {
		name    string
		formula string
		want    bool
	}{
		{"stat threshold", "actor.stats.intelligence >= 14.0", true},
		{"resource", "actor.resources.mana > 20", false},
		{"target effect", `"burning" in target.effects`, true},
		{"faction", `target.faction != actor.faction`, true},
		{"round", "round >= 2", true},
		{"dice", `roll("1d6") == 4`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Check(tt.formula, mage, goblin, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckErrors(t *testing.T) {
	ev, err := NewEvaluator(engine.NewRNG(1))
	require.NoError(t, err)
	c := engine.NewCombatant("a", "A", engine.FactionPlayer, 10)

	_, err = ev.Check("actor.hp +", c, nil, 1)
	assert.ErrorContains(t, err, "compile")

	_, err = ev.Check("actor.hp", c, nil, 1)
	assert.ErrorContains(t, err, "want bool")

	assert.Error(t, ev.Compile("nope("))
	assert.NoError(t, ev.Compile("actor.alive"))
}

func TestRoll(t *testing.T) {
	ev, err := NewEvaluator(&engine.SequenceRNG{Ints: []int{3, 5}})
	require.NoError(t, err)

	n, err := ev.Roll("2d6+1")
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	n, err = ev.Roll("d20")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ev.Roll("banana")
	assert.Error(t, err)
}
