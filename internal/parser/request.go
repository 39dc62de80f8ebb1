package parser

import (
	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/engine"
)

// Request converts an action command into an engine request. current fills
// in the actor when the line has no "by:" clause. ok is false for commands
// that are not actions.
func (c *Command) Request(current string) (req action.Request, ok bool) {
	pick := func(a *ActorExpr) string {
		if name := actor(a); name != "" {
			return name
		}
		return current
	}

	switch {
	case c.Attack != nil:
		return action.Request{Kind: action.KindAttack, SourceID: pick(c.Attack.Actor), TargetIDs: targets(c.Attack.Targets)}, true
	case c.Skill != nil:
		return action.Request{Kind: action.KindSkill, SourceID: pick(c.Skill.Actor), SkillID: c.Skill.Skill, TargetIDs: targets(c.Skill.Targets)}, true
	case c.Use != nil:
		return action.Request{Kind: action.KindItem, SourceID: pick(c.Use.Actor), ItemID: c.Use.Item, TargetIDs: targets(c.Use.Targets)}, true
	case c.Move != nil:
		p := engine.Vec3{X: c.Move.To.X, Y: c.Move.To.Y}
		if c.Move.To.Z != nil {
			p.Z = *c.Move.To.Z
		}
		return action.Request{Kind: action.KindMove, SourceID: pick(c.Move.Actor), Position: &p}, true
	case c.Pass != nil:
		return action.Request{Kind: action.KindPass, SourceID: pick(c.Pass.Actor)}, true
	}
	return action.Request{}, false
}

// Actor returns the "by:" name of any command, or current when absent.
func (c *Command) Actor(current string) string {
	var a *ActorExpr
	switch {
	case c.Attack != nil:
		a = c.Attack.Actor
	case c.Skill != nil:
		a = c.Skill.Actor
	case c.Use != nil:
		a = c.Use.Actor
	case c.Move != nil:
		a = c.Move.Actor
	case c.Pass != nil:
		a = c.Pass.Actor
	case c.Delay != nil:
		a = c.Delay.Actor
	case c.Ready != nil:
		a = c.Ready.Actor
	case c.Look != nil:
		a = c.Look.Actor
	case c.Query != nil:
		a = c.Query.Actor
	}
	if name := actor(a); name != "" {
		return name
	}
	return current
}

// Readied converts a ready command into its trigger, watched combatant and
// held request. ok is false for every other command.
func (c *Command) Readied(current string) (trigger engine.ReadyTrigger, watch string, req action.Request, ok bool) {
	if c.Ready == nil {
		return "", "", action.Request{}, false
	}
	source := c.Actor(current)
	held := &Command{Attack: c.Ready.Attack, Skill: c.Ready.Skill, Use: c.Ready.Use}
	req, _ = held.Request(source)
	req.SourceID = source
	return engine.ReadyTrigger(lower(c.Ready.Trigger)), c.Ready.Watch, req, true
}
