package action

import (
	"log/slog"

	"github.com/suderio/skirmish/internal/damage"
	"github.com/suderio/skirmish/internal/effects"
	"github.com/suderio/skirmish/internal/engine"
)

// Checker evaluates a skill requirement formula.
type Checker interface {
	Check(formula string, actor, target *engine.Combatant, round int) (bool, error)
}

// Gate is the phase check consulted before any other validation.
type Gate interface {
	CanPerformAction(kind Kind) bool
}

type Option func(*Resolver)

func WithChecker(c Checker) Option { return func(r *Resolver) { r.checker = c } }

func WithLogger(l *slog.Logger) Option { return func(r *Resolver) { r.logger = l } }

// Resolver has no state of its own beyond its collaborators.
type Resolver struct {
	calc    *damage.Calculator
	effects *effects.Pipeline
	catalog *Catalog
	checker Checker
	logger  *slog.Logger
}

func New(calc *damage.Calculator, pipeline *effects.Pipeline, catalog *Catalog, opts ...Option) *Resolver {
	if catalog == nil {
		catalog = NewCatalog()
	}
	r := &Resolver{
		calc:    calc,
		effects: pipeline,
		catalog: catalog,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Catalog() *Catalog { return r.catalog }

// plan is a fully validated request, ready to execute.
type plan struct {
	source  *engine.Combatant
	targets []*engine.Combatant
	skill   Skill
	item    Item
	effects []engine.EffectSpec
}

// Validate runs every check Resolve would without mutating anything.
func (r *Resolver) Validate(state *engine.CombatState, gate Gate, req Request) error {
	_, err := r.validate(state, gate, req, true)
	return err
}

// ValidateOutOfTurn is Validate without the turn check, for readied actions.
func (r *Resolver) ValidateOutOfTurn(state *engine.CombatState, gate Gate, req Request) error {
	_, err := r.validate(state, gate, req, false)
	return err
}

// Resolve validates req and, only if it passes, executes it.
func (r *Resolver) Resolve(state *engine.CombatState, gate Gate, req Request) (*Outcome, error) {
	p, err := r.validate(state, gate, req, true)
	if err != nil {
		return nil, err
	}
	return r.execute(p, req), nil
}

// ResolveOutOfTurn executes a readied action outside its owner's turn.
func (r *Resolver) ResolveOutOfTurn(state *engine.CombatState, gate Gate, req Request) (*Outcome, error) {
	p, err := r.validate(state, gate, req, false)
	if err != nil {
		return nil, err
	}
	return r.execute(p, req), nil
}

func (r *Resolver) execute(p *plan, req Request) *Outcome {
	out := &Outcome{Request: req}
	for _, t := range p.targets {
		out.Targets = append(out.Targets, t.ID)
	}

	switch req.Kind {
	case KindAttack:
		hit := damage.WeaponHit(p.source.Weapon)
		for _, t := range p.targets {
			out.Damage = append(out.Damage, r.calc.ApplyFullDamage(p.source, t, hit))
		}

	case KindSkill:
		out.Spent = r.spend(p.source, p.skill.Cost)
		hit := damage.Hit{
			Base:          p.skill.Base,
			Scaling:       p.skill.Scaling,
			Stat:          p.skill.Stat,
			Type:          p.skill.DamageType,
			AllowCritical: p.skill.AllowCritical,
		}
		for _, t := range p.targets {
			if p.skill.Damaging() {
				out.Damage = append(out.Damage, r.calc.ApplyFullDamage(p.source, t, hit))
			}
			r.heal(p.source, t, p.skill.Heal, out)
			r.applyEffects(p.source, t, p.effects, out)
		}

	case KindItem:
		p.source.Inventory[p.item.ID]--
		for _, t := range p.targets {
			r.heal(p.source, t, p.item.Heal, out)
			for _, name := range engine.SortedIDs(p.item.Restore) {
				if n := restore(t, name, p.item.Restore[name]); n > 0 {
					out.Restores = append(out.Restores, Restore{TargetID: t.ID, Resource: name, Amount: n})
				}
			}
			r.applyEffects(p.source, t, p.effects, out)
		}

	case KindMove:
		dest := *req.Position
		p.source.Position = &dest
		out.Destination = &dest

	case KindPass:
		r.logger.Info("turn passed", "combatant", p.source.ID)
	}
	return out
}

func (r *Resolver) validate(state *engine.CombatState, gate Gate, req Request, inTurn bool) (*plan, error) {
	if gate != nil && !gate.CanPerformAction(req.Kind) {
		return nil, engine.Reject("combat is %s: actions are not allowed", state.Phase)
	}
	source, err := state.Get(req.SourceID)
	if err != nil {
		return nil, err
	}
	if !source.Alive() {
		return nil, engine.Reject("%s is dead", source.ID)
	}
	if inTurn && (state.Turn.Vacated || state.Turn.Current() != source.ID) {
		return nil, engine.Reject("it is not %s's turn", source.ID)
	}
	if !req.Kind.Valid() {
		return nil, engine.Reject("unknown action kind %q", req.Kind)
	}
	if req.Kind != KindPass {
		if id, ok := r.effects.Disabled(source); ok {
			return nil, engine.Reject("%s cannot act while under %s", source.ID, id)
		}
	}

	p := &plan{source: source}
	switch req.Kind {
	case KindAttack:
		if p.targets, err = r.targets(state, source, TargetEnemy, req.TargetIDs, false); err != nil {
			return nil, err
		}

	case KindSkill:
		if p.skill, err = r.catalog.Skill(req.SkillID); err != nil {
			return nil, err
		}
		if !source.Knows(p.skill.ID) {
			return nil, engine.Reject("%s does not know %s", source.ID, p.skill.ID)
		}
		if p.targets, err = r.targets(state, source, p.skill.Targeting, req.TargetIDs, true); err != nil {
			return nil, err
		}
		if err := r.requirements(state, source, p.targets, p.skill); err != nil {
			return nil, err
		}
		if err := Affordable(source, p.skill); err != nil {
			return nil, err
		}
		if p.effects, err = r.specs(p.skill.Effects); err != nil {
			return nil, err
		}

	case KindItem:
		if p.item, err = r.catalog.Item(req.ItemID); err != nil {
			return nil, err
		}
		if source.Inventory[p.item.ID] <= 0 {
			return nil, engine.Reject("%s has no %s left", source.ID, p.item.ID)
		}
		if p.targets, err = r.targets(state, source, p.item.Targeting, req.TargetIDs, true); err != nil {
			return nil, err
		}
		if p.effects, err = r.specs(p.item.Effects); err != nil {
			return nil, err
		}

	case KindMove:
		if req.Position == nil {
			return nil, engine.Reject("move needs a destination")
		}

	case KindPass:
	}
	return p, nil
}

// targets resolves the requested ids under rule. Dead targets are dropped
// and duplicates collapsed. With no ids and implicit set, every living
// combatant the rule allows is picked.
func (r *Resolver) targets(state *engine.CombatState, source *engine.Combatant, rule Targeting, ids []string, implicit bool) ([]*engine.Combatant, error) {
	var out []*engine.Combatant
	switch {
	case len(ids) == 0 && !implicit:
		return nil, engine.Reject("%s needs a target", source.ID)
	case len(ids) == 0 && rule == TargetSelf:
		out = append(out, source)
	case len(ids) == 0:
		for _, c := range state.Ordered() {
			if c.Alive() && rule.Allows(source, c) {
				out = append(out, c)
			}
		}
	default:
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			c, err := state.Get(id)
			if err != nil {
				return nil, err
			}
			if !c.Alive() {
				continue
			}
			if !rule.Allows(source, c) {
				return nil, engine.Reject("%s is not a valid %s target for %s", c.ID, rule, source.ID)
			}
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, engine.Reject("no living target for %s", source.ID)
	}
	return out, nil
}

func (r *Resolver) requirements(state *engine.CombatState, source *engine.Combatant, targets []*engine.Combatant, s Skill) error {
	if len(s.Requires) == 0 {
		return nil
	}
	if r.checker == nil {
		r.logger.Warn("skill requirements skipped: no checker configured", "skill", s.ID)
		return nil
	}
	for _, req := range s.Requires {
		for _, t := range targets {
			ok, err := r.checker.Check(req.Formula, source, t, state.Round)
			if err != nil {
				return engine.Reject("skill %s: %v", s.ID, err)
			}
			if !ok {
				if req.Error != "" {
					return engine.Reject("%s", req.Error)
				}
				return engine.Reject("skill %s: requirement %q not met for %s", s.ID, req.Formula, t.ID)
			}
		}
	}
	return nil
}

func (r *Resolver) specs(ids []string) ([]engine.EffectSpec, error) {
	out := make([]engine.EffectSpec, 0, len(ids))
	for _, id := range ids {
		spec, err := r.catalog.Effect(id)
		if err != nil {
			return nil, err
		}
		spec = spec.WithDefaults()
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// Affordable reports, as a validation error, the first resource source
// cannot pay for s. Resources are checked in name order.
func Affordable(source *engine.Combatant, s Skill) error {
	for _, name := range engine.SortedIDs(s.Cost) {
		if source.Resources[name].Current < s.Cost[name] {
			return engine.Reject("insufficient %s", name)
		}
	}
	return nil
}

func (r *Resolver) spend(source *engine.Combatant, cost map[string]int) map[string]int {
	if len(cost) == 0 {
		return nil
	}
	spent := make(map[string]int, len(cost))
	for name, n := range cost {
		res := source.Resources[name]
		res.Current -= n
		source.Resources[name] = res
		spent[name] = n
	}
	return spent
}

func (r *Resolver) heal(source, target *engine.Combatant, amount int, out *Outcome) {
	if amount <= 0 {
		return
	}
	if n := r.calc.ApplyHealing(source, target, amount); n > 0 {
		out.Heals = append(out.Heals, Heal{TargetID: target.ID, Amount: n})
	}
}

func (r *Resolver) applyEffects(source, target *engine.Combatant, specs []engine.EffectSpec, out *Outcome) {
	for _, spec := range specs {
		ok, err := r.effects.Apply(source, target, spec)
		if err != nil {
			r.logger.Error("effect rejected after validation", "effect", spec.ID, "error", err)
		}
		out.Effects = append(out.Effects, EffectResult{TargetID: target.ID, EffectID: spec.ID, Applied: ok})
	}
}

// restore refills a resource up to its maximum and returns the gain.
func restore(c *engine.Combatant, name string, amount int) int {
	res, ok := c.Resources[name]
	if !ok || amount <= 0 {
		return 0
	}
	before := res.Current
	res.Current = min(res.Max, res.Current+amount)
	c.Resources[name] = res
	return res.Current - before
}

// Usable lists the skills and items source could use right now, ignoring
// targeting. Used to offer choices to players and the autopilot.
func (r *Resolver) Usable(source *engine.Combatant) (skills, items []string) {
	for _, id := range r.catalog.SkillIDs() {
		s := r.catalog.Skills[id]
		if source.Knows(id) && Affordable(source, s) == nil {
			skills = append(skills, id)
		}
	}
	for _, id := range r.catalog.ItemIDs() {
		if source.Inventory[id] > 0 {
			items = append(items, id)
		}
	}
	return skills, items
}
