package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/combat"
	"github.com/suderio/skirmish/internal/engine"
)

// ErrTurnLimit stops a Run that did not reach post_combat in time.
var ErrTurnLimit = errors.New("turn limit reached")

// Choose picks an action for the combatant holding the turn: the first
// damaging skill it can afford against the first living enemy, else a
// weapon attack on that enemy, else a pass. ok is false when nobody may act.
func Choose(c *combat.Combat) (req action.Request, ok bool) {
	id := c.Current()
	if id == "" {
		return action.Request{}, false
	}
	av, err := c.AvailableActions(id)
	if err != nil || len(av.Kinds) == 0 {
		return action.Request{}, false
	}
	pass := action.Request{Kind: action.KindPass, SourceID: id}

	enemies := c.Enemies(id)
	if len(enemies) == 0 {
		return pass, true
	}
	foe := enemies[0]
	self, _ := c.Combatant(id)

	catalog := c.Catalog()
	for _, skillID := range av.Skills {
		s := catalog.Skills[skillID]
		if !s.Damaging() || !s.Targeting.Allows(self, foe) {
			continue
		}
		req := action.Request{Kind: action.KindSkill, SourceID: id, SkillID: skillID, TargetIDs: []string{foe.ID}}
		if c.Validate(req) == nil {
			return req, true
		}
	}
	attack := action.Request{Kind: action.KindAttack, SourceID: id, TargetIDs: []string{foe.ID}}
	if c.Validate(attack) == nil {
		return attack, true
	}
	return pass, true
}

// Step lets the autopilot act once for whoever holds the turn.
func (e *Engine) Step(ctx context.Context, id string) (*Result, error) {
	h, unlock, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, ok := Choose(h.combat)
	if !ok {
		return nil, engine.Reject("combat %s has no one to act (%s)", id, h.combat.Phase())
	}
	return e.submit(ctx, h, req)
}

func (e *Engine) phase(id string) (engine.Phase, error) {
	var p engine.Phase
	err := e.View(id, func(c *combat.Combat) error {
		p = c.Phase()
		return nil
	})
	return p, err
}

// Run steps the autopilot until the combat leaves the active phase or
// maxTurns actions have been taken. observe, when set, sees every result.
func (e *Engine) Run(ctx context.Context, id string, maxTurns int, observe func(*Result)) (*engine.Snapshot, error) {
	for turn := 0; maxTurns <= 0 || turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		phase, err := e.phase(id)
		if err != nil {
			return nil, err
		}
		if phase != engine.PhaseActive {
			return e.Snapshot(id)
		}
		res, err := e.Step(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", turn+1, err)
		}
		if observe != nil {
			observe(res)
		}
	}
	snap, err := e.Snapshot(id)
	if err != nil {
		return nil, err
	}
	if snap.Phase == engine.PhaseActive {
		return snap, fmt.Errorf("%w after %d actions", ErrTurnLimit, maxTurns)
	}
	return snap, nil
}
