package action

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/skirmish/internal/damage"
	"github.com/suderio/skirmish/internal/effects"
	"github.com/suderio/skirmish/internal/engine"
)

type gate bool

func (g gate) CanPerformAction(Kind) bool { return bool(g) }

type stubChecker map[string]bool

func (s stubChecker) Check(formula string, _, _ *engine.Combatant, _ int) (bool, error) {
	ok, known := s[formula]
	if !known {
		return false, errors.New("unknown formula")
	}
	return ok, nil
}

func catalog() *Catalog {
	c := NewCatalog()
	c.Effects["burning"] = engine.EffectSpec{Category: engine.CategoryDebuff, Duration: 2, DamagePerTurn: 3}
	c.Effects["regen"] = engine.EffectSpec{Category: engine.CategoryBuff, Duration: 3, HealPerTurn: 2}
	c.Skills["firebolt"] = Skill{
		Cost: map[string]int{"mana": 5}, Base: 10, DamageType: engine.DamageFire,
		Effects: []string{"burning"},
	}
	c.Skills["mend"] = Skill{Targeting: TargetAlly, Heal: 8, Cost: map[string]int{"mana": 3}}
	c.Skills["smite"] = Skill{Base: 5, Requires: []Requirement{{Formula: "holy", Error: "needs a holy symbol"}}}
	c.Skills["nova"] = Skill{Base: 4, Targeting: TargetEnemy}
	c.Items["potion"] = Item{Heal: 15}
	c.Items["ether"] = Item{Restore: map[string]int{"mana": 10}, Effects: []string{"regen"}}
	c.Normalize()
	return c
}

type fixture struct {
	state *engine.CombatState
	res   *Resolver
	hero  *engine.Combatant
	ally  *engine.Combatant
	orc   *engine.Combatant
	imp   *engine.Combatant
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{state: engine.NewCombatState("c", 10, 10, time.Unix(0, 0))}

	f.hero = engine.NewCombatant("hero", "Hero", engine.FactionPlayer, 50)
	f.hero.Weapon = engine.Weapon{Base: 25, DamageType: engine.DamagePhysical}
	f.hero.Resources["mana"] = engine.Resource{Current: 8, Max: 20}
	f.hero.Inventory["potion"] = 1
	f.hero.Inventory["ether"] = 2
	f.ally = engine.NewCombatant("ally", "Ally", engine.FactionPlayer, 40)
	f.orc = engine.NewCombatant("orc", "Orc", engine.FactionEnemy, 100)
	f.orc.Armor = 50
	f.imp = engine.NewCombatant("imp", "Imp", engine.FactionEnemy, 20)
	for _, c := range []*engine.Combatant{f.hero, f.ally, f.orc, f.imp} {
		require.NoError(t, f.state.Add(c))
	}
	f.state.Phase = engine.PhaseActive
	f.state.Turn = engine.TurnState{Order: []engine.TurnSlot{{ID: "hero"}, {ID: "ally", Seq: 1}, {ID: "orc", Seq: 2}, {ID: "imp", Seq: 3}}}

	n := 0
	pipe := effects.New(effects.WithIDs(func() string { n++; return fmt.Sprintf("fx-%d", n) }))
	calc := damage.New(&engine.SequenceRNG{Floats: []float64{0.99}}, damage.WithModifier(pipe))
	f.res = New(calc, pipe, catalog(), opts...)
	return f
}

func TestAttackAgainstArmor(t *testing.T) {
	f := newFixture(t)
	out, err := f.res.Resolve(f.state, gate(true), Request{Kind: KindAttack, SourceID: "hero", TargetIDs: []string{"orc"}})
	require.NoError(t, err)

	require.Len(t, out.Damage, 1)
	assert.Equal(t, 17, out.Damage[0].Final)
	assert.Equal(t, 83, f.orc.HP)
	assert.Equal(t, 17, out.TotalDamage())
	assert.Equal(t, []string{"orc"}, out.Targets)

	evt := out.Event()
	assert.Equal(t, "attack", evt.Kind)
	assert.Equal(t, 17, evt.Damage)
}

func TestValidationOrder(t *testing.T) {
	tests := []struct {
		name  string
		gate  gate
		req   Request
		setup func(*fixture)
		is    error
	}{
		{"phase gate", false, Request{Kind: KindPass, SourceID: "hero"}, nil, engine.ErrValidation},
		{"unknown source", true, Request{Kind: KindPass, SourceID: "ghost"}, nil, engine.ErrNotFound},
		{"dead source", true, Request{Kind: KindPass, SourceID: "hero"}, func(f *fixture) { f.hero.HP = 0 }, engine.ErrValidation},
		{"not your turn", true, Request{Kind: KindPass, SourceID: "orc"}, nil, engine.ErrValidation},
		{"unknown kind", true, Request{Kind: "dance", SourceID: "hero"}, nil, engine.ErrValidation},
		{"attack without target", true, Request{Kind: KindAttack, SourceID: "hero"}, nil, engine.ErrValidation},
		{"attack an ally", true, Request{Kind: KindAttack, SourceID: "hero", TargetIDs: []string{"ally"}}, nil, engine.ErrValidation},
		{"unknown target", true, Request{Kind: KindAttack, SourceID: "hero", TargetIDs: []string{"ghost"}}, nil, engine.ErrNotFound},
		{"only dead targets", true, Request{Kind: KindAttack, SourceID: "hero", TargetIDs: []string{"imp"}}, func(f *fixture) { f.imp.HP = 0 }, engine.ErrValidation},
		{"unknown skill", true, Request{Kind: KindSkill, SourceID: "hero", SkillID: "meteor"}, nil, engine.ErrNotFound},
		{"unlearned skill", true, Request{Kind: KindSkill, SourceID: "hero", SkillID: "nova"}, func(f *fixture) { f.hero.Skills = []string{"firebolt"} }, engine.ErrValidation},
		{"unknown item", true, Request{Kind: KindItem, SourceID: "hero", ItemID: "elixir"}, nil, engine.ErrNotFound},
		{"empty inventory", true, Request{Kind: KindItem, SourceID: "hero", ItemID: "potion"}, func(f *fixture) { f.hero.Inventory["potion"] = 0 }, engine.ErrValidation},
		{"move nowhere", true, Request{Kind: KindMove, SourceID: "hero"}, nil, engine.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			before := f.state.Snapshot()
			_, err := f.res.Resolve(f.state, tt.gate, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
			assert.Equal(t, before.Combatants, f.state.Snapshot().Combatants, "rejection must not mutate")
		})
	}
}

func TestInsufficientResourceNamesIt(t *testing.T) {
	f := newFixture(t)
	f.hero.Resources["mana"] = engine.Resource{Current: 2, Max: 20}

	_, err := f.res.Resolve(f.state, gate(true), Request{Kind: KindSkill, SourceID: "hero", SkillID: "firebolt", TargetIDs: []string{"imp"}})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "insufficient mana", verr.Reason)
	assert.Equal(t, 20, f.imp.HP)
	assert.Empty(t, f.imp.Effects)
}

func TestSkillSpendsThenDamagesAndApplies(t *testing.T) {
	f := newFixture(t)
	out, err := f.res.Resolve(f.state, gate(true), Request{Kind: KindSkill, SourceID: "hero", SkillID: "firebolt", TargetIDs: []string{"imp", "imp"}})
	require.NoError(t, err)

	assert.Equal(t, 3, f.hero.Resources["mana"].Current)
	assert.Equal(t, map[string]int{"mana": 5}, out.Spent)
	assert.Equal(t, []string{"imp"}, out.Targets, "duplicates collapse")
	assert.Equal(t, 10, f.imp.HP)
	require.Len(t, out.Effects, 1)
	assert.True(t, out.Effects[0].Applied)
	assert.NotNil(t, f.imp.Effect("burning"))
}

func TestImplicitTargetsCoverEveryMatch(t *testing.T) {
	f := newFixture(t)
	out, err := f.res.Resolve(f.state, gate(true), Request{Kind: KindSkill, SourceID: "hero", SkillID: "nova"})
	require.NoError(t, err)
	assert.Equal(t, []string{"orc", "imp"}, out.Targets)
}

func TestHealingSkillOnAlly(t *testing.T) {
	f := newFixture(t)
	f.ally.HP = 35
	out, err := f.res.Resolve(f.state, gate(true), Request{Kind: KindSkill, SourceID: "hero", SkillID: "mend", TargetIDs: []string{"ally"}})
	require.NoError(t, err)
	assert.Equal(t, 40, f.ally.HP)
	assert.Equal(t, 5, out.TotalHealing(), "healing clamps to max HP")
}

func TestRequirements(t *testing.T) {
	f := newFixture(t, WithChecker(stubChecker{"holy": false}))
	_, err := f.res.Resolve(f.state, gate(true), Request{Kind: KindSkill, SourceID: "hero", SkillID: "smite", TargetIDs: []string{"orc"}})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "needs a holy symbol", verr.Reason)

	f = newFixture(t, WithChecker(stubChecker{"holy": true}))
	_, err = f.res.Resolve(f.state, gate(true), Request{Kind: KindSkill, SourceID: "hero", SkillID: "smite", TargetIDs: []string{"orc"}})
	require.NoError(t, err)

	f = newFixture(t, WithChecker(stubChecker{}))
	_, err = f.res.Resolve(f.state, gate(true), Request{Kind: KindSkill, SourceID: "hero", SkillID: "smite", TargetIDs: []string{"orc"}})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestItems(t *testing.T) {
	f := newFixture(t)
	f.hero.HP = 30
	f.hero.Resources["mana"] = engine.Resource{Current: 15, Max: 20}

	out, err := f.res.Resolve(f.state, gate(true), Request{Kind: KindItem, SourceID: "hero", ItemID: "potion"})
	require.NoError(t, err)
	assert.Equal(t, 45, f.hero.HP)
	assert.Equal(t, 0, f.hero.Inventory["potion"])
	assert.Equal(t, 15, out.TotalHealing())

	out, err = f.res.Resolve(f.state, gate(true), Request{Kind: KindItem, SourceID: "hero", ItemID: "ether"})
	require.NoError(t, err)
	assert.Equal(t, 20, f.hero.Resources["mana"].Current)
	assert.Equal(t, []Restore{{TargetID: "hero", Resource: "mana", Amount: 5}}, out.Restores)
	assert.NotNil(t, f.hero.Effect("regen"))
	assert.Equal(t, 1, f.hero.Inventory["ether"])
}

func TestMoveAndPass(t *testing.T) {
	f := newFixture(t)
	dest := engine.Vec3{X: 3, Y: 4}
	out, err := f.res.Resolve(f.state, gate(true), Request{Kind: KindMove, SourceID: "hero", Position: &dest})
	require.NoError(t, err)
	require.NotNil(t, f.hero.Position)
	assert.Equal(t, dest, *f.hero.Position)
	assert.Equal(t, dest, *out.Destination)

	dest.X = 99
	assert.Equal(t, 3.0, f.hero.Position.X, "position is copied")

	out, err = f.res.Resolve(f.state, gate(true), Request{Kind: KindPass, SourceID: "hero"})
	require.NoError(t, err)
	assert.Zero(t, out.TotalDamage())
	assert.Equal(t, "hero used pass", out.Event().Message())
}

func TestDisablingEffectsLeaveOnlyPass(t *testing.T) {
	tests := []struct {
		name string
		spec engine.EffectSpec
	}{
		{"flagged", engine.EffectSpec{ID: "hex", Category: engine.CategoryDebuff, Duration: 2, PreventsAction: true}},
		{"stunned", engine.EffectSpec{ID: "stunned", Category: engine.CategoryCondition, Duration: 1}},
		{"paralyzed by name", engine.EffectSpec{ID: "venom", Name: "Paralyzed", Category: engine.CategoryCondition, Duration: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ok, err := f.res.effects.Apply(nil, f.hero, tt.spec)
			require.NoError(t, err)
			require.True(t, ok)

			before := f.state.Snapshot()
			_, err = f.res.Resolve(f.state, gate(true), Request{Kind: KindAttack, SourceID: "hero", TargetIDs: []string{"orc"}})
			assert.ErrorIs(t, err, engine.ErrValidation)
			assert.ErrorContains(t, err, tt.spec.ID)
			assert.Equal(t, before.Combatants, f.state.Snapshot().Combatants)

			_, err = f.res.Resolve(f.state, gate(true), Request{Kind: KindPass, SourceID: "hero"})
			assert.NoError(t, err)
		})
	}
}

func TestDebuffConditionWithoutFlagDoesNotDisable(t *testing.T) {
	f := newFixture(t)
	_, err := f.res.effects.Apply(nil, f.hero, engine.EffectSpec{ID: "slowed", Category: engine.CategoryCondition, Duration: 2})
	require.NoError(t, err)

	_, err = f.res.Resolve(f.state, gate(true), Request{Kind: KindAttack, SourceID: "hero", TargetIDs: []string{"orc"}})
	assert.NoError(t, err)
}

func TestUsable(t *testing.T) {
	f := newFixture(t)
	f.hero.Skills = []string{"firebolt", "mend"}
	f.hero.Resources["mana"] = engine.Resource{Current: 4, Max: 20}
	skills, items := f.res.Usable(f.hero)
	assert.Equal(t, []string{"mend"}, skills)
	assert.Equal(t, []string{"ether", "potion"}, items)
}

func TestCatalogValidate(t *testing.T) {
	c := catalog()
	require.NoError(t, c.Validate())

	c.Skills["broken"] = Skill{ID: "broken", Targeting: "everyone", DamageType: engine.DamagePhysical, Effects: []string{"missing"}}
	c.Effects["bad"] = engine.EffectSpec{ID: "bad", Category: "weird", Duration: 1}.WithDefaults()
	err := c.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown targeting")
	assert.ErrorContains(t, err, "unknown effect \"missing\"")
	assert.ErrorIs(t, err, engine.ErrInvalidEffect)
}
