package combat

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/engine"
)

type recorder struct{ events []engine.Event }

func (r *recorder) handle(evt engine.Event) { r.events = append(r.events, evt) }

func (r *recorder) types() []engine.EventType {
	out := make([]engine.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}

func (r *recorder) find(t engine.EventType) []engine.Event {
	var out []engine.Event
	for _, e := range r.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

func fighter(id string, faction engine.Faction, hp int, initiative float64) *engine.Combatant {
	c := engine.NewCombatant(id, id, faction, hp)
	c.Initiative = &initiative
	return c
}

func testCatalog() *action.Catalog {
	c := action.NewCatalog()
	c.Effects["poison"] = engine.EffectSpec{Category: engine.CategoryDebuff, Duration: 3, DamagePerTurn: 50}
	c.Skills["firebolt"] = action.Skill{Cost: map[string]int{"mana": 5}, Base: 10, DamageType: engine.DamageFire}
	c.Effects["shroud"] = engine.EffectSpec{Category: engine.CategoryBuff, Duration: 2,
		StatDeltas: []engine.StatDelta{{Stat: engine.StatStealth, Amount: 60}}}
	c.Effects["stun"] = engine.EffectSpec{Category: engine.CategoryCondition, Duration: 1, PreventsAction: true}
	c.Items["potion"] = action.Item{Heal: 15}
	c.Normalize()
	return c
}

func newCombat(t *testing.T, combatants ...*engine.Combatant) (*Combat, *recorder) {
	t.Helper()
	c, err := New(combatants,
		WithID("test"),
		WithRNG(&engine.SequenceRNG{}),
		WithCatalog(testCatalog()),
		WithClock(func() time.Time { return time.Unix(0, 0) }),
	)
	require.NoError(t, err)
	rec := &recorder{}
	c.Subscribe(rec.handle)
	return c, rec
}

func hero() *engine.Combatant {
	h := fighter("hero", engine.FactionPlayer, 50, 30)
	h.Weapon = engine.Weapon{Base: 25, DamageType: engine.DamagePhysical}
	h.Resources["mana"] = engine.Resource{Current: 8, Max: 20}
	h.Inventory["potion"] = 1
	return h
}

func orc() *engine.Combatant {
	o := fighter("orc", engine.FactionEnemy, 100, 20)
	o.Armor = 50
	return o
}

func pass(id string) action.Request { return action.Request{Kind: action.KindPass, SourceID: id} }

func TestPassAdvancesTurnAndRound(t *testing.T) {
	a := engine.NewCombatant("a", "A", engine.FactionPlayer, 20)
	a.Stats["dexterity"] = 16
	b := engine.NewCombatant("b", "B", engine.FactionEnemy, 20)
	b.Stats["dexterity"] = 10

	c, err := New([]*engine.Combatant{a, b}, WithRNG(&engine.SequenceRNG{Ints: []int{10, 10}}))
	require.NoError(t, err)
	rec := &recorder{}
	c.Subscribe(rec.handle)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	assert.Equal(t, engine.PhaseActive, c.Phase())
	assert.Equal(t, []string{"a", "b"}, c.Order())
	assert.Equal(t, "a", c.Current())

	_, err = c.Submit(ctx, pass("a"))
	require.NoError(t, err)
	assert.Equal(t, "b", c.Current())
	assert.Equal(t, 1, c.Round())

	_, err = c.Submit(ctx, pass("b"))
	require.NoError(t, err)
	assert.Equal(t, "a", c.Current())
	assert.Equal(t, 2, c.Round())

	assert.Equal(t, []engine.EventType{
		engine.EventStateChanged,
		engine.EventStateChanged,
		engine.EventTurnAdvanced,
		engine.EventActionExecuted,
		engine.EventTurnAdvanced,
		engine.EventActionExecuted,
		engine.EventRoundAdvanced,
		engine.EventTurnAdvanced,
	}, rec.types())
	assert.Len(t, c.Log(100), len(rec.events), "every event lands in the combat log")
	assert.Equal(t, "a used pass", rec.events[3].Message())
}

func TestAttackMitigatedByArmor(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	out, err := c.Submit(ctx, action.Request{Kind: action.KindAttack, SourceID: "hero", TargetIDs: []string{"orc"}})
	require.NoError(t, err)
	assert.Equal(t, 17, out.TotalDamage())

	o, err := c.Combatant("orc")
	require.NoError(t, err)
	assert.Equal(t, 83, o.HP)
	assert.Equal(t, "orc", c.Current())
}

func TestVictoryEndsCombat(t *testing.T) {
	c, rec := newCombat(t, hero(), fighter("imp", engine.FactionEnemy, 10, 10))
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	_, err := c.Submit(ctx, action.Request{Kind: action.KindAttack, SourceID: "hero", TargetIDs: []string{"imp"}})
	require.NoError(t, err)

	assert.Equal(t, engine.PhasePostCombat, c.Phase())
	assert.Equal(t, engine.FactionPlayer, c.Victor())
	assert.Equal(t, []string{"hero"}, c.Order())

	died := rec.find(engine.EventCombatantDied)
	require.Len(t, died, 1)
	assert.Equal(t, &engine.CombatantDiedEvent{ID: "imp", KillerID: "hero"}, died[0])

	ended := rec.find(engine.EventCombatEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, engine.FactionPlayer, ended[0].(*engine.CombatEndedEvent).Victor)

	_, err = c.Submit(ctx, pass("hero"))
	assert.ErrorIs(t, err, engine.ErrValidation)

	require.NoError(t, c.End(ctx, "cleanup"))
	assert.Equal(t, engine.PhaseEnded, c.Phase())
}

func TestDrawWhenNoSideStands(t *testing.T) {
	c, rec := newCombat(t, fighter("monk", engine.FactionNeutral, 10, 10))
	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, engine.PhasePostCombat, c.Phase())
	assert.Equal(t, engine.Faction(""), c.Victor())
	ended := rec.find(engine.EventCombatEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "draw", ended[0].(*engine.CombatEndedEvent).Reason)
}

func TestInvalidTransitionsChangeNothing(t *testing.T) {
	c, rec := newCombat(t, hero(), orc())
	ctx := context.Background()

	err := c.Machine().Transition(ctx, engine.PhaseActive)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.ErrorContains(t, err, "not_started -> active")
	assert.Equal(t, engine.PhaseNotStarted, c.Phase())
	assert.Empty(t, c.History())
	assert.Empty(t, rec.events)

	assert.ErrorIs(t, c.Pause(ctx), engine.ErrInvalidTransition)
	assert.ErrorIs(t, c.End(ctx, "nope"), engine.ErrInvalidTransition)

	_, err = c.Submit(ctx, pass("hero"))
	assert.ErrorIs(t, err, engine.ErrValidation)

	require.NoError(t, c.Start(ctx))
	assert.ErrorIs(t, c.Start(ctx), engine.ErrInvalidTransition)
	assert.ErrorIs(t, c.Machine().Transition(ctx, engine.PhaseEnded), engine.ErrInvalidTransition)
	assert.Equal(t, engine.PhaseActive, c.Phase())
}

func TestPauseBlocksActions(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Pause(ctx))

	_, err := c.Submit(ctx, pass("hero"))
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "paused")
	assert.Equal(t, "hero", c.Current())

	av, err := c.AvailableActions("hero")
	require.NoError(t, err)
	assert.Empty(t, av.Kinds)

	// Fog queries do not depend on the phase.
	c.Fog().Visibility("hero", "orc", true)

	assert.ErrorIs(t, c.Pause(ctx), engine.ErrInvalidTransition)
	require.NoError(t, c.Resume(ctx))
	_, err = c.Submit(ctx, pass("hero"))
	require.NoError(t, err)
}

func TestEndFromPaused(t *testing.T) {
	c, rec := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Pause(ctx))
	require.NoError(t, c.End(ctx, "abandoned"))

	var phases []engine.Phase
	for _, tr := range c.History() {
		phases = append(phases, tr.To)
	}
	assert.Equal(t, []engine.Phase{
		engine.PhaseInitialization, engine.PhaseActive, engine.PhasePaused,
		engine.PhaseActive, engine.PhasePostCombat, engine.PhaseEnded,
	}, phases)

	ended := rec.find(engine.EventCombatEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "abandoned", ended[0].(*engine.CombatEndedEvent).Reason)
	assert.Empty(t, c.Fog().Entries())
}

func TestDamageOverTimeKillsAtTurnStart(t *testing.T) {
	imp := fighter("imp", engine.FactionEnemy, 10, 20)
	c, rec := newCombat(t, hero(), imp, fighter("orc", engine.FactionEnemy, 30, 10))
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	ok, err := c.ApplyEffect("hero", "imp", "poison")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Submit(ctx, pass("hero"))
	require.NoError(t, err)

	assert.Equal(t, 0, imp.HP)
	assert.Empty(t, imp.Effects)
	assert.Equal(t, []string{"hero", "orc"}, c.Order())
	assert.Equal(t, "orc", c.Current(), "the dead combatant's turn is skipped")
	assert.Equal(t, 1, c.Round())
	assert.Equal(t, engine.PhaseActive, c.Phase())

	died := rec.find(engine.EventCombatantDied)
	require.Len(t, died, 1)
	assert.Equal(t, &engine.CombatantDiedEvent{ID: "imp"}, died[0])
}

func TestDelayActsLastWithoutNewRound(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	assert.ErrorIs(t, c.Delay(ctx, "orc"), engine.ErrValidation)

	require.NoError(t, c.Delay(ctx, "hero"))
	assert.Equal(t, []string{"orc", "hero"}, c.Order())
	assert.Equal(t, "orc", c.Current())

	_, err := c.Submit(ctx, pass("orc"))
	require.NoError(t, err)
	assert.Equal(t, "hero", c.Current())
	assert.Equal(t, 1, c.Round())

	_, err = c.Submit(ctx, pass("hero"))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Round())
}

func TestDelayFromLastSlotWrapsToTop(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	_, err := c.Submit(ctx, pass("hero"))
	require.NoError(t, err)
	require.Equal(t, "orc", c.Current())

	require.NoError(t, c.Delay(ctx, "orc"))
	assert.Equal(t, "hero", c.Current())
	assert.Equal(t, []string{"hero", "orc"}, c.Order())
	assert.Equal(t, 1, c.Round())
}

func TestRemoveCurrentCombatant(t *testing.T) {
	c, _ := newCombat(t, hero(), fighter("ally", engine.FactionPlayer, 20, 25), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.RemoveCombatant(ctx, "hero"))
	assert.Equal(t, "ally", c.Current())
	assert.Equal(t, []string{"ally", "orc"}, c.Order())
	_, err := c.Combatant("hero")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.Len(t, c.Snapshot().Combatants, 2)

	assert.ErrorIs(t, c.RemoveCombatant(ctx, "hero"), engine.ErrNotFound)
}

func TestAddCombatantMidFight(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.AddCombatant(fighter("wolf", engine.FactionEnemy, 15, 25)))
	assert.Equal(t, []string{"hero", "wolf", "orc"}, c.Order())
	assert.Equal(t, "hero", c.Current())

	assert.ErrorIs(t, c.AddCombatant(fighter("wolf", engine.FactionEnemy, 15, 25)), engine.ErrValidation)
}

func TestAvailableActions(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	require.NoError(t, c.Start(context.Background()))

	av, err := c.AvailableActions("hero")
	require.NoError(t, err)
	assert.Equal(t, []action.Kind{action.KindAttack, action.KindSkill, action.KindItem, action.KindMove, action.KindPass}, av.Kinds)
	assert.Equal(t, []string{"firebolt"}, av.Skills)
	assert.Equal(t, []string{"potion"}, av.Items)

	av, err = c.AvailableActions("orc")
	require.NoError(t, err)
	assert.Empty(t, av.Kinds)

	_, err = c.AvailableActions("ghost")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestStunnedCombatantCanOnlyPass(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	ok, err := c.ApplyEffect("orc", "hero", "stun")
	require.NoError(t, err)
	require.True(t, ok)

	av, err := c.AvailableActions("hero")
	require.NoError(t, err)
	assert.Equal(t, []action.Kind{action.KindPass}, av.Kinds)
	assert.Empty(t, av.Skills)

	_, err = c.Submit(ctx, action.Request{Kind: action.KindAttack, SourceID: "hero", TargetIDs: []string{"orc"}})
	assert.ErrorIs(t, err, engine.ErrValidation)
	o, _ := c.Combatant("orc")
	assert.Equal(t, 100, o.HP)

	_, err = c.Submit(ctx, pass("hero"))
	require.NoError(t, err)
	assert.Equal(t, "orc", c.Current())
}

func TestStealthEffectsReachFog(t *testing.T) {
	h := hero()
	h.Stealth = 10
	c, _ := newCombat(t, h, orc())

	assert.Equal(t, 10.0, c.Fog().Profile("hero").Stealth)

	_, err := c.ApplyEffect("", "hero", "shroud")
	require.NoError(t, err)
	assert.Equal(t, 70.0, h.Stealth)
	assert.Equal(t, 70.0, c.Fog().Profile("hero").Stealth)

	_, err = c.RemoveEffect("hero", "shroud")
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.Fog().Profile("hero").Stealth)
}

func TestLogLinesCarryCombatIDOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c, err := New([]*engine.Combatant{hero(), orc()},
		WithID("test"), WithRNG(&engine.SequenceRNG{}), WithCatalog(testCatalog()), WithLogger(logger))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	_, err = c.Submit(ctx, pass("hero"))
	require.NoError(t, err)
	require.NoError(t, c.End(ctx, "done"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, " combat=test"), line)
	}
}

func TestCorruptedStatePanics(t *testing.T) {
	ctx := context.Background()

	t.Run("hp above max", func(t *testing.T) {
		h := hero()
		c, _ := newCombat(t, h, orc())
		require.NoError(t, c.Start(ctx))
		h.HP = h.MaxHP + 10
		require.PanicsWithError(t, "engine invariant violated: combatant hero hp 60 outside [0,50]", func() {
			_, _ = c.Submit(ctx, pass("hero"))
		})
	})

	t.Run("turn index out of range", func(t *testing.T) {
		c, _ := newCombat(t, hero(), orc())
		require.NoError(t, c.Start(ctx))
		c.state.Turn.Index = 7
		require.PanicsWithError(t, "engine invariant violated: turn index 7 out of range 2", func() {
			_, _ = c.ApplyEffect("", "hero", "shroud")
		})
	})
}

func TestEffectManagement(t *testing.T) {
	o := orc()
	o.EffectImmunities = []string{"poison"}
	c, _ := newCombat(t, hero(), o)

	ok, err := c.ApplyEffect("", "orc", "poison")
	require.NoError(t, err)
	assert.False(t, ok, "immunity is not an error")

	_, err = c.ApplyEffect("", "orc", "frost")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	ok, err = c.ApplyEffect("orc", "hero", "poison")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := c.RemoveEffect("hero", "poison")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = c.ApplyEffect("orc", "hero", "poison")
	require.NoError(t, err)
	n, err := c.ClearEffects("hero")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = c.ClearEffects("ghost")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSnapshotRestoreResumes(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	_, err := c.Submit(ctx, action.Request{Kind: action.KindAttack, SourceID: "hero", TargetIDs: []string{"orc"}})
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Equal(t, "orc", snap.CurrentTurnID)
	assert.Equal(t, []string{"hero", "orc"}, snap.TurnOrder)

	r, err := Restore(snap, WithRNG(&engine.SequenceRNG{}), WithCatalog(testCatalog()))
	require.NoError(t, err)
	assert.Equal(t, c.ID(), r.ID())
	assert.Equal(t, engine.PhaseActive, r.Phase())
	assert.Equal(t, "orc", r.Current())
	assert.Equal(t, c.History(), r.History())

	o, err := r.Combatant("orc")
	require.NoError(t, err)
	assert.Equal(t, 83, o.HP)

	_, err = r.Submit(ctx, pass("orc"))
	require.NoError(t, err)
	assert.Equal(t, "hero", r.Current())
	assert.Equal(t, 2, r.Round())
	assert.Equal(t, "orc", c.Current(), "restored combat does not alias the original")

	_, err = Restore(nil)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func strike(target string) action.Request {
	return action.Request{Kind: action.KindAttack, TargetIDs: []string{target}}
}

func TestReadiedAttackFiresWhenEnemyMoves(t *testing.T) {
	c, rec := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Ready(ctx, "hero", engine.ReadyOnMove, "", strike("orc")))
	assert.Equal(t, "orc", c.Current())
	h, _ := c.Combatant("hero")
	require.NotNil(t, h.Readied)
	assert.Equal(t, engine.ReadyOnMove, h.Readied.Trigger)

	_, err := c.Submit(ctx, action.Request{Kind: action.KindMove, SourceID: "orc", Position: &engine.Vec3{X: 1}})
	require.NoError(t, err)

	o, _ := c.Combatant("orc")
	assert.Equal(t, 83, o.HP)
	assert.Nil(t, h.Readied, "a readied action fires once")
	assert.Equal(t, "hero", c.Current())
	assert.Equal(t, 2, c.Round())

	executed := rec.find(engine.EventActionExecuted)
	require.Len(t, executed, 3)
	assert.Equal(t, "ready", executed[0].(*engine.ActionExecutedEvent).Kind)
	assert.Equal(t, "move", executed[1].(*engine.ActionExecutedEvent).Kind)
	reaction := executed[2].(*engine.ActionExecutedEvent)
	assert.Equal(t, "hero", reaction.SourceID)
	assert.Equal(t, 17, reaction.Damage)
}

func TestReadiedActionIgnoresOtherTriggers(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Ready(ctx, "hero", engine.ReadyOnAttack, "orc", strike("orc")))
	_, err := c.Submit(ctx, pass("orc"))
	require.NoError(t, err)

	o, _ := c.Combatant("orc")
	assert.Equal(t, 100, o.HP)
	h, _ := c.Combatant("hero")
	assert.Nil(t, h.Readied, "lapses when its owner's turn comes round")
	assert.Equal(t, "hero", c.Current())
}

func TestReactionKillingTheActorAdvancesOnce(t *testing.T) {
	weak := fighter("orc", engine.FactionEnemy, 10, 20)
	goblin := fighter("goblin", engine.FactionEnemy, 100, 10)
	c, rec := newCombat(t, hero(), weak, goblin)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.Ready(ctx, "hero", engine.ReadyOnAttack, "orc", strike("orc")))
	_, err := c.Submit(ctx, action.Request{Kind: action.KindAttack, SourceID: "orc", TargetIDs: []string{"hero"}})
	require.NoError(t, err)

	assert.Equal(t, engine.PhaseActive, c.Phase())
	assert.Equal(t, "goblin", c.Current())
	assert.Equal(t, 1, c.Round())
	assert.Equal(t, []string{"hero", "goblin"}, c.Order())
	died := rec.find(engine.EventCombatantDied)
	require.Len(t, died, 1)
	assert.Equal(t, "hero", died[0].(*engine.CombatantDiedEvent).KillerID)
}

func TestReadyRejections(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	tests := map[string]struct {
		id      string
		trigger engine.ReadyTrigger
		watch   string
		req     action.Request
	}{
		"unknown trigger": {"hero", "sneezes", "", strike("orc")},
		"pass":            {"hero", engine.ReadyOnAct, "", action.Request{Kind: action.KindPass}},
		"move":            {"hero", engine.ReadyOnAct, "", action.Request{Kind: action.KindMove, Position: &engine.Vec3{}}},
		"not their turn":  {"orc", engine.ReadyOnAct, "", strike("hero")},
		"watching self":   {"hero", engine.ReadyOnAct, "hero", strike("orc")},
		"unknown watch":   {"hero", engine.ReadyOnAct, "ghost", strike("orc")},
		"ally as target":  {"hero", engine.ReadyOnAct, "", strike("hero")},
		"unknown skill":   {"hero", engine.ReadyOnAct, "", action.Request{Kind: action.KindSkill, SkillID: "meteor"}},
		"unknown item":    {"hero", engine.ReadyOnAct, "", action.Request{Kind: action.KindItem, ItemID: "elixir"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := c.Ready(ctx, tt.id, tt.trigger, tt.watch, tt.req)
			require.Error(t, err)
			assert.Equal(t, "hero", c.Current())
			h, _ := c.Combatant("hero")
			assert.Nil(t, h.Readied)
		})
	}
}

func TestReadiedActionSurvivesRestore(t *testing.T) {
	c, _ := newCombat(t, hero(), orc())
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Ready(ctx, "hero", engine.ReadyOnAct, "", strike("orc")))

	r, err := Restore(c.Snapshot(), WithRNG(&engine.SequenceRNG{}), WithCatalog(testCatalog()))
	require.NoError(t, err)
	_, err = r.Submit(ctx, action.Request{Kind: action.KindMove, SourceID: "orc", Position: &engine.Vec3{Y: 2}})
	require.NoError(t, err)

	o, _ := r.Combatant("orc")
	assert.Equal(t, 83, o.HP)
	o, _ = c.Combatant("orc")
	assert.Equal(t, 100, o.HP)
}

func TestExplicitZeroCriticalChanceKept(t *testing.T) {
	zero := 0.0
	h := hero()
	h.CriticalChance = &zero
	c, err := New([]*engine.Combatant{h, orc()}, WithCritical(0.25, 2))
	require.NoError(t, err)

	got, _ := c.Combatant("hero")
	require.NotNil(t, got.CriticalChance)
	assert.Zero(t, *got.CriticalChance)
	assert.Zero(t, got.Stat(engine.StatCriticalChance))

	got, _ = c.Combatant("orc")
	require.NotNil(t, got.CriticalChance)
	assert.Equal(t, 0.25, *got.CriticalChance)
}
