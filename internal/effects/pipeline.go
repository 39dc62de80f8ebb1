// Package effects owns the lifecycle of effect instances on combatants:
// application with stacking and immunity rules, turn-boundary ticking,
// explicit removal, dispels and exact reversal of stat modifications.
package effects

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/suderio/skirmish/internal/engine"
)

// ResultType tags one entry produced by Process.
type ResultType string

const (
	ResultDamage  ResultType = "damage"
	ResultHealing ResultType = "healing"
	ResultRemoved ResultType = "effect_removed"
	ResultDeath   ResultType = "death"
)

// Result reports what one effect did at a turn boundary.
type Result struct {
	Type     ResultType `json:"type"`
	Value    int        `json:"value"`
	EffectID string     `json:"effect_id"`
	TargetID string     `json:"target_id"`
}

// Publisher receives effect_applied and effect_removed events.
type Publisher interface {
	Publish(engine.Event)
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }
func WithPublisher(pub Publisher) Option { return func(p *Pipeline) { p.pub = pub } }

// WithIDs overrides instance id generation.
func WithIDs(next func() string) Option { return func(p *Pipeline) { p.newID = next } }

// Pipeline is stateless apart from its collaborators; every instance lives on
// the combatant that carries it.
type Pipeline struct {
	logger *slog.Logger
	pub    Publisher
	newID  func() string
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) publish(evt engine.Event) {
	if p.pub != nil {
		p.pub.Publish(evt)
	}
}

// IsImmune reports whether target refuses the effect, either innately or
// through an active immunity-granting effect.
func (p *Pipeline) IsImmune(target *engine.Combatant, effectID string, category engine.EffectCategory) bool {
	for _, id := range target.EffectImmunities {
		if id == effectID || id == string(category) {
			return true
		}
	}
	for _, e := range target.Effects {
		if e.Blocks(effectID, category) {
			return true
		}
	}
	return false
}

// Apply puts spec on target. It returns false without error when the target
// is dead or immune, or when a stack-limited reapplication changes nothing.
// A malformed spec is rejected with engine.ErrInvalidEffect before anything
// is touched.
func (p *Pipeline) Apply(source, target *engine.Combatant, spec engine.EffectSpec) (bool, error) {
	spec = spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return false, err
	}
	if target == nil || !target.Alive() {
		return false, nil
	}
	if p.IsImmune(target, spec.ID, spec.Category) {
		p.logger.Debug("effect blocked by immunity", "target", target.ID, "effect", spec.ID)
		return false, nil
	}

	sourceID := ""
	if source != nil {
		sourceID = source.ID
	}

	existing := target.Effect(spec.ID)
	if existing == nil {
		inst := p.instantiate(spec, sourceID)
		applyDeltas(target, inst)
		target.Effects = append(target.Effects, inst)
		p.publish(&engine.EffectAppliedEvent{
			TargetID: target.ID, EffectID: inst.EffectID, SourceID: sourceID,
			Stacks: inst.Stacks, Duration: inst.Duration,
		})
		return true, nil
	}

	changed := false
	if !existing.Stackable() {
		existing.Duration = longer(existing.Duration, spec.Duration)
		changed = true
	} else {
		if existing.Stacks < existing.MaxStacks {
			existing.Stacks++
			changed = true
			if existing.Stacking.ScalesIntensity() {
				reapplyDeltas(target, existing)
			}
		}
		if existing.Stacking.RefreshesDuration() {
			d := longer(existing.Duration, spec.Duration)
			if d != existing.Duration {
				existing.Duration = d
				changed = true
			}
		}
	}
	if !changed {
		return false, nil
	}
	if sourceID != "" {
		existing.SourceID = sourceID
	}
	p.publish(&engine.EffectAppliedEvent{
		TargetID: target.ID, EffectID: existing.EffectID, SourceID: existing.SourceID,
		Stacks: existing.Stacks, Duration: existing.Duration,
	})
	return true, nil
}

func (p *Pipeline) instantiate(spec engine.EffectSpec, sourceID string) *engine.EffectInstance {
	inst := &engine.EffectInstance{
		InstanceID:    p.newID(),
		EffectID:      spec.ID,
		Name:          spec.Name,
		Category:      spec.Category,
		Duration:      spec.Duration,
		Trigger:       spec.Trigger,
		DamagePerTurn: spec.DamagePerTurn,
		HealPerTurn:   spec.HealPerTurn,
		DamageType:    spec.DamageType,
		StatDeltas:    append([]engine.StatDelta(nil), spec.StatDeltas...),
		Stacking:      spec.Stacking,
		Stacks:        1,
		MaxStacks:     spec.MaxStacks,
		SourceID:      sourceID,
		ImmuneEffects: append([]string(nil), spec.ImmuneEffects...),

		PreventsAction: spec.PreventsAction,
	}
	if len(spec.DamageTaken) > 0 {
		inst.DamageTaken = make(map[engine.DamageType]float64, len(spec.DamageTaken))
		for k, v := range spec.DamageTaken {
			inst.DamageTaken[k] = v
		}
	}
	return inst
}

// longer picks the richer of two durations; permanent wins.
func longer(a, b int) int {
	if a == engine.Permanent || b == engine.Permanent {
		return engine.Permanent
	}
	return max(a, b)
}

// Process ticks every effect on target whose trigger matches the boundary.
// Death stops processing and clears whatever effects remain.
func (p *Pipeline) Process(target *engine.Combatant, turnStart bool) []Result {
	var results []Result
	if target == nil || !target.Alive() {
		return results
	}

	for i := 0; i < len(target.Effects); {
		e := target.Effects[i]
		if !e.Trigger.Matches(turnStart) {
			i++
			continue
		}

		if dmg := e.TickDamage(); dmg > 0 {
			before := target.HP
			target.SetHP(before - dmg)
			results = append(results, Result{Type: ResultDamage, Value: before - target.HP, EffectID: e.EffectID, TargetID: target.ID})
		}
		if heal := e.TickHealing(); heal > 0 && target.Alive() {
			before := target.HP
			target.SetHP(before + heal)
			results = append(results, Result{Type: ResultHealing, Value: target.HP - before, EffectID: e.EffectID, TargetID: target.ID})
		}

		if !target.Alive() {
			results = append(results, Result{Type: ResultDeath, EffectID: e.EffectID, TargetID: target.ID})
			for _, id := range p.clear(target, engine.ReasonDeath) {
				results = append(results, Result{Type: ResultRemoved, EffectID: id, TargetID: target.ID})
			}
			return results
		}

		if !e.Permanent() {
			e.Duration--
			if e.Duration <= 0 {
				p.removeAt(target, i, engine.ReasonExpired)
				results = append(results, Result{Type: ResultRemoved, EffectID: e.EffectID, TargetID: target.ID})
				continue
			}
		}
		i++
	}
	return results
}

// Remove drops effectID from target and reverts its stat changes.
func (p *Pipeline) Remove(target *engine.Combatant, effectID string) bool {
	for i, e := range target.Effects {
		if e.EffectID == effectID {
			p.removeAt(target, i, engine.ReasonRemoved)
			return true
		}
	}
	return false
}

// Dispel removes up to limit effects of category, oldest first. A limit of
// zero or less removes all of them.
func (p *Pipeline) Dispel(target *engine.Combatant, category engine.EffectCategory, limit int) int {
	return p.removeWhere(target, engine.ReasonDispelled, limit, func(e *engine.EffectInstance) bool {
		return e.Category == category
	})
}

// RemoveByCategory removes every effect of category.
func (p *Pipeline) RemoveByCategory(target *engine.Combatant, category engine.EffectCategory) int {
	return p.Dispel(target, category, 0)
}

// RemoveByName removes every effect whose display name matches.
func (p *Pipeline) RemoveByName(target *engine.Combatant, name string) int {
	return p.removeWhere(target, engine.ReasonRemoved, 0, func(e *engine.EffectInstance) bool {
		return e.Name == name
	})
}

// Clear strips every effect from target.
func (p *Pipeline) Clear(target *engine.Combatant, reason string) int {
	return len(p.clear(target, reason))
}

func (p *Pipeline) clear(target *engine.Combatant, reason string) []string {
	var removed []string
	for len(target.Effects) > 0 {
		last := len(target.Effects) - 1
		removed = append(removed, target.Effects[last].EffectID)
		p.removeAt(target, last, reason)
	}
	return removed
}

func (p *Pipeline) removeWhere(target *engine.Combatant, reason string, limit int, match func(*engine.EffectInstance) bool) int {
	n := 0
	for i := 0; i < len(target.Effects); {
		if limit > 0 && n >= limit {
			break
		}
		if match(target.Effects[i]) {
			p.removeAt(target, i, reason)
			n++
			continue
		}
		i++
	}
	return n
}

func (p *Pipeline) removeAt(target *engine.Combatant, i int, reason string) {
	e := target.Effects[i]
	revertDeltas(target, e)
	target.Effects = append(target.Effects[:i], target.Effects[i+1:]...)
	p.logger.Debug("effect removed", "target", target.ID, "effect", e.EffectID, "reason", reason)
	p.publish(&engine.EffectRemovedEvent{TargetID: target.ID, EffectID: e.EffectID, Reason: reason})
}

// Disabled returns the first active effect that keeps target from acting.
func (p *Pipeline) Disabled(target *engine.Combatant) (effectID string, ok bool) {
	if target == nil {
		return "", false
	}
	for _, e := range target.Effects {
		if e.Disables() {
			return e.EffectID, true
		}
	}
	return "", false
}

// DamageMultiplier folds every damage_taken modifier active on target for t.
func (p *Pipeline) DamageMultiplier(target *engine.Combatant, t engine.DamageType) float64 {
	m := 1.0
	for _, e := range target.Effects {
		if v, ok := e.DamageTaken[t]; ok {
			m *= v
		}
	}
	return m
}
