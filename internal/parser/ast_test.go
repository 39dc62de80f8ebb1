package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/engine"
	"github.com/suderio/skirmish/internal/parser"
)

func TestParseAttack(t *testing.T) {
	p := parser.Build()

	cmd, err := p.ParseString("", "attack by: aldric to: goblin-1 and: goblin-2")
	require.NoError(t, err)
	require.NotNil(t, cmd.Attack)
	assert.Equal(t, "attack", cmd.Name())

	req, ok := cmd.Request("wren")
	require.True(t, ok)
	assert.Equal(t, action.Request{
		Kind:      action.KindAttack,
		SourceID:  "aldric",
		TargetIDs: []string{"goblin-1", "goblin-2"},
	}, req)
}

func TestParseDefaultsToCurrentActor(t *testing.T) {
	p := parser.Build()

	cmd, err := p.ParseString("", "PASS")
	require.NoError(t, err)
	req, ok := cmd.Request("wren")
	require.True(t, ok)
	assert.Equal(t, action.Request{Kind: action.KindPass, SourceID: "wren"}, req)
}

func TestParseSkillAndItem(t *testing.T) {
	p := parser.Build()

	t.Run("skill with targets", func(t *testing.T) {
		cmd, err := p.ParseString("", "cast firebolt by: wren to: chief")
		require.NoError(t, err)
		req, ok := cmd.Request("")
		require.True(t, ok)
		assert.Equal(t, action.KindSkill, req.Kind)
		assert.Equal(t, "firebolt", req.SkillID)
		assert.Equal(t, "wren", req.SourceID)
		assert.Equal(t, []string{"chief"}, req.TargetIDs)
	})

	t.Run("skill without targets", func(t *testing.T) {
		cmd, err := p.ParseString("", "skill stoneskin")
		require.NoError(t, err)
		req, _ := cmd.Request("aldric")
		assert.Equal(t, "stoneskin", req.SkillID)
		assert.Empty(t, req.TargetIDs)
	})

	t.Run("item", func(t *testing.T) {
		cmd, err := p.ParseString("", "use potion to: wren")
		require.NoError(t, err)
		req, _ := cmd.Request("aldric")
		assert.Equal(t, action.Request{Kind: action.KindItem, SourceID: "aldric", ItemID: "potion", TargetIDs: []string{"wren"}}, req)
	})
}

func TestParseMove(t *testing.T) {
	p := parser.Build()

	tests := []struct {
		line string
		want engine.Vec3
	}{
		{"move to: 3 4", engine.Vec3{X: 3, Y: 4}},
		{"move by: wren to: -1.5, 2", engine.Vec3{X: -1.5, Y: 2}},
		{"move to: 1 2 3", engine.Vec3{X: 1, Y: 2, Z: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := p.ParseString("", tt.line)
			require.NoError(t, err)
			req, ok := cmd.Request("aldric")
			require.True(t, ok)
			require.NotNil(t, req.Position)
			assert.Equal(t, tt.want, *req.Position)
		})
	}
}

func TestParseNonActions(t *testing.T) {
	p := parser.Build()

	cmd, err := p.ParseString("", `end "the goblins fled"`)
	require.NoError(t, err)
	require.NotNil(t, cmd.Phase)
	assert.Equal(t, "end", cmd.Name())
	assert.Equal(t, "the goblins fled", cmd.Phase.Reason)
	_, ok := cmd.Request("x")
	assert.False(t, ok)

	cmd, err = p.ParseString("", "perceive by: wren at: goblin-3 with: 5")
	require.NoError(t, err)
	require.NotNil(t, cmd.Look)
	assert.Equal(t, "perceive", cmd.Name())
	assert.Equal(t, "goblin-3", cmd.Look.Target)
	require.NotNil(t, cmd.Look.Bonus)
	assert.Equal(t, 5.0, *cmd.Look.Bonus)
	assert.Equal(t, "wren", cmd.Actor("aldric"))

	cmd, err = p.ParseString("", "delay")
	require.NoError(t, err)
	assert.Equal(t, "delay", cmd.Name())
	assert.Equal(t, "aldric", cmd.Actor("aldric"))

	cmd, err = p.ParseString("", "actions by: chief")
	require.NoError(t, err)
	assert.Equal(t, "actions", cmd.Name())
	assert.Equal(t, "chief", cmd.Actor(""))
}

func TestParseReady(t *testing.T) {
	p := parser.Build()

	cmd, err := p.ParseString("", "ready by: wren when: Attacks watch: chief cast firebolt to: chief")
	require.NoError(t, err)
	require.NotNil(t, cmd.Ready)
	assert.Equal(t, "ready", cmd.Name())
	_, ok := cmd.Request("aldric")
	assert.False(t, ok, "a ready line is not an immediate action")

	trigger, watch, req, ok := cmd.Readied("aldric")
	require.True(t, ok)
	assert.Equal(t, engine.ReadyOnAttack, trigger)
	assert.Equal(t, "chief", watch)
	assert.Equal(t, action.Request{Kind: action.KindSkill, SourceID: "wren", SkillID: "firebolt", TargetIDs: []string{"chief"}}, req)

	cmd, err = p.ParseString("", "ready when: acts use potion")
	require.NoError(t, err)
	trigger, watch, req, _ = cmd.Readied("aldric")
	assert.Equal(t, engine.ReadyOnAct, trigger)
	assert.Empty(t, watch)
	assert.Equal(t, action.Request{Kind: action.KindItem, SourceID: "aldric", ItemID: "potion"}, req)

	cmd, err = p.ParseString("", "undo")
	require.NoError(t, err)
	assert.Equal(t, "undo", cmd.Name())
	_, _, _, ok = cmd.Readied("aldric")
	assert.False(t, ok)

	_, err = p.ParseString("", "ready when: moves")
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	p := parser.Build()

	for _, line := range []string{"attack by: aldric", "move to: north", "dance"} {
		_, err := p.ParseString("", line)
		require.Error(t, err, line)
	}

	assert.EqualError(t, parser.MapError("attack by: aldric", nil), "the command attack must be: attack [by: Actor] to: Target [and: Target]*")
	assert.ErrorIs(t, parser.MapError("dance wildly", nil), parser.ErrUnknownCommand)
	assert.ErrorIs(t, parser.MapError("  ", nil), parser.ErrUnknownCommand)
	assert.Contains(t, parser.Usage(), "perceive [by: Observer] at: Target [with: Bonus]")
}
