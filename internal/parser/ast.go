package parser

import "strings"

// Command is one line typed at the play prompt.
type Command struct {
	Attack *AttackCmd `parser:"( @@"`
	Skill  *SkillCmd  `parser:"| @@"`
	Use    *UseCmd    `parser:"| @@"`
	Move   *MoveCmd   `parser:"| @@"`
	Pass   *PassCmd   `parser:"| @@"`
	Delay  *DelayCmd  `parser:"| @@"`
	Ready  *ReadyCmd  `parser:"| @@"`
	Phase  *PhaseCmd  `parser:"| @@"`
	Look   *LookCmd   `parser:"| @@"`
	Query  *QueryCmd  `parser:"| @@ )"`
}

// ActorExpr maps parsing the optional "by: Someone" block. Without it the
// combatant holding the turn acts.
type ActorExpr struct {
	Keyword string `parser:"\"by\" \":\""`
	Name    string `parser:"@Ident"`
}

// TargetsExpr is "to: a and: b ...".
type TargetsExpr struct {
	Names []string `parser:"\"to\" \":\" @Ident ( \"and\" \":\" @Ident )*"`
}

// AttackCmd is a weapon attack against one or more targets.
type AttackCmd struct {
	Keyword string       `parser:"@\"attack\""`
	Actor   *ActorExpr   `parser:"@@?"`
	Targets *TargetsExpr `parser:"@@"`
}

// SkillCmd casts a catalog skill. Targets may be left out for skills that
// pick their own.
type SkillCmd struct {
	Keyword string       `parser:"@(\"skill\"|\"cast\")"`
	Skill   string       `parser:"@Ident"`
	Actor   *ActorExpr   `parser:"@@?"`
	Targets *TargetsExpr `parser:"@@?"`
}

type UseCmd struct {
	Keyword string       `parser:"@\"use\""`
	Item    string       `parser:"@Ident"`
	Actor   *ActorExpr   `parser:"@@?"`
	Targets *TargetsExpr `parser:"@@?"`
}

// PointExpr is "x y [z]", commas optional.
type PointExpr struct {
	X float64  `parser:"@Number \",\"?"`
	Y float64  `parser:"@Number"`
	Z *float64 `parser:"( \",\"? @Number )?"`
}

type MoveCmd struct {
	Keyword string     `parser:"@\"move\""`
	Actor   *ActorExpr `parser:"@@?"`
	To      *PointExpr `parser:"\"to\" \":\" @@"`
}

type PassCmd struct {
	Keyword string     `parser:"@(\"pass\"|\"wait\")"`
	Actor   *ActorExpr `parser:"@@?"`
}

type DelayCmd struct {
	Keyword string     `parser:"@\"delay\""`
	Actor   *ActorExpr `parser:"@@?"`
}

// ReadyCmd holds an attack, skill or item until the trigger fires, as in
// "ready when: moves watch: goblin-1 attack to: goblin-1".
type ReadyCmd struct {
	Keyword string     `parser:"@\"ready\""`
	Actor   *ActorExpr `parser:"@@?"`
	Trigger string     `parser:"\"when\" \":\" @(\"moves\"|\"attacks\"|\"acts\")"`
	Watch   string     `parser:"( \"watch\" \":\" @Ident )?"`
	Attack  *AttackCmd `parser:"( @@"`
	Skill   *SkillCmd  `parser:"| @@"`
	Use     *UseCmd    `parser:"| @@ )"`
}

// PhaseCmd pauses, resumes or ends the combat.
type PhaseCmd struct {
	Action string `parser:"@(\"pause\"|\"resume\"|\"end\")"`
	Reason string `parser:"@String?"`
}

// LookCmd asks the fog tracker about one observer and target. "perceive"
// rolls a contested check, optionally with a bonus.
type LookCmd struct {
	Kind   string     `parser:"@(\"look\"|\"perceive\")"`
	Actor  *ActorExpr `parser:"@@?"`
	Target string     `parser:"\"at\" \":\" @Ident"`
	Bonus  *float64   `parser:"( \"with\" \":\" @Number )?"`
}

// QueryCmd covers the read-only and session commands.
type QueryCmd struct {
	Kind  string     `parser:"@(\"status\"|\"actions\"|\"log\"|\"auto\"|\"undo\"|\"help\"|\"quit\"|\"exit\")"`
	Actor *ActorExpr `parser:"@@?"`
}

// Name returns the command keyword, lower-cased.
func (c *Command) Name() string {
	switch {
	case c.Attack != nil:
		return "attack"
	case c.Skill != nil:
		return "skill"
	case c.Use != nil:
		return "use"
	case c.Move != nil:
		return "move"
	case c.Pass != nil:
		return "pass"
	case c.Delay != nil:
		return "delay"
	case c.Ready != nil:
		return "ready"
	case c.Phase != nil:
		return lower(c.Phase.Action)
	case c.Look != nil:
		return lower(c.Look.Kind)
	case c.Query != nil:
		return lower(c.Query.Kind)
	}
	return ""
}

func lower(s string) string { return strings.ToLower(s) }

func actor(a *ActorExpr) string {
	if a == nil {
		return ""
	}
	return a.Name
}

func targets(t *TargetsExpr) []string {
	if t == nil {
		return nil
	}
	return t.Names
}
