package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/engine"
)

func TestLoaderEmbeddedFallback(t *testing.T) {
	l := NewLoader(nil)

	enc, scoped, err := l.LoadEncounter("Ambush")
	require.NoError(t, err)
	assert.Equal(t, "Roadside Ambush", enc.Name)
	assert.Equal(t, uint64(7), enc.Seed)
	assert.Len(t, enc.Grid.Obstacles, 2)

	roster, catalog, err := scoped.Build(enc)
	require.NoError(t, err)

	var ids []string
	for _, c := range roster {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"aldric", "wren", "goblin-1", "goblin-2", "goblin-3", "chief"}, ids)

	chief := roster[5]
	assert.Equal(t, "Orc Chief", chief.Name)
	assert.Equal(t, 90, chief.MaxHP)
	assert.Equal(t, 90, chief.HP, "hp defaults to max_hp")
	assert.Equal(t, 17.0, chief.Stats["strength"], "template stats survive the override")

	g2 := roster[3]
	assert.Equal(t, "Goblin 2", g2.Name)
	assert.Equal(t, engine.FactionEnemy, g2.Faction)
	require.NotNil(t, g2.Position)
	assert.Equal(t, engine.Vec3{X: 9, Y: 3}, *g2.Position)
	assert.NotSame(t, roster[2].Position, g2.Position)

	fb, err := catalog.Skill("firebolt")
	require.NoError(t, err)
	assert.Equal(t, "firebolt", fb.ID)
	assert.Equal(t, action.TargetEnemy, fb.Targeting)
	mend, err := catalog.Skill("mend")
	require.NoError(t, err)
	assert.Equal(t, action.TargetAlly, mend.Targeting)
	burning, err := catalog.Effect("burning")
	require.NoError(t, err)
	assert.Equal(t, engine.TriggerTurnStart, burning.Trigger)
}

func TestLoadEncounterFromFileUsesLocalTemplates(t *testing.T) {
	enc, scoped, err := NewLoader(nil).LoadEncounter("testdata/duel.yaml")
	require.NoError(t, err)

	roster, catalog, err := scoped.Build(enc)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	champ := roster[0]
	assert.Equal(t, "champion", champ.ID)
	assert.Equal(t, "Veteran Knight", champ.Name)
	assert.Equal(t, 99, champ.MaxHP)
	assert.Equal(t, 60.0, champ.Armor)
	assert.Equal(t, map[string]float64{"strength": 18, "dexterity": 12}, champ.Stats)
	require.NotNil(t, champ.Initiative)
	assert.Equal(t, 20.0, *champ.Initiative)
	assert.Equal(t, engine.DamagePhysical, champ.Weapon.DamageType)

	captain := roster[1]
	assert.Equal(t, "bandit-captain", captain.ID)
	assert.Equal(t, 25, captain.HP)

	lunge, err := catalog.Skill("lunge")
	require.NoError(t, err)
	assert.Equal(t, 9.0, lunge.Base)
	smoke, err := catalog.Item("smoke_bomb")
	require.NoError(t, err)
	assert.Equal(t, action.TargetSelf, smoke.Targeting)
}

func TestDataDirsTakePrecedence(t *testing.T) {
	knight, err := NewLoader([]string{"testdata"}).LoadTemplate("Knight")
	require.NoError(t, err)
	assert.Equal(t, 99, knight.MaxHP)

	knight, err = NewLoader([]string{"does-not-exist"}).LoadTemplate("knight")
	require.NoError(t, err)
	assert.Equal(t, 60, knight.MaxHP)
}

func TestBuildReportsEveryProblem(t *testing.T) {
	enc, scoped, err := NewLoader(nil).LoadEncounter("testdata/broken.yaml")
	require.NoError(t, err)

	_, _, err = scoped.Build(enc)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNotFound)
	for _, want := range []string{
		`skill cursed: unknown effect "doom"`,
		"combatants/dragon.yaml",
		`combatant ghost: unknown faction "spectral"`,
		"combatant ghost: max_hp must be positive",
		`combatant thief: unknown skill "backstab"`,
		"combatant thief: duplicate id",
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestMissingEncounter(t *testing.T) {
	_, _, err := NewLoader(nil).LoadEncounter("nowhere")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "orc-chief", Slug(" Orc Chief "))
}
