package engine

import (
	"fmt"
	"strings"
)

// Permanent marks an effect that never expires on its own.
const Permanent = -1

// EffectCategory groups effects for dispels and immunities.
type EffectCategory string

const (
	CategoryBuff      EffectCategory = "buff"
	CategoryDebuff    EffectCategory = "debuff"
	CategoryCondition EffectCategory = "condition"
)

func (c EffectCategory) Valid() bool {
	switch c {
	case CategoryBuff, CategoryDebuff, CategoryCondition:
		return true
	}
	return false
}

// Trigger selects the turn boundary at which an effect ticks.
type Trigger string

const (
	TriggerTurnStart Trigger = "turn_start"
	TriggerTurnEnd   Trigger = "turn_end"
	TriggerBoth      Trigger = "both"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerTurnStart, TriggerTurnEnd, TriggerBoth:
		return true
	}
	return false
}

// Matches reports whether an effect with trigger t ticks at the given boundary.
func (t Trigger) Matches(turnStart bool) bool {
	switch t {
	case TriggerBoth:
		return true
	case TriggerTurnStart:
		return turnStart
	case TriggerTurnEnd:
		return !turnStart
	}
	return false
}

// Stacking is the policy used when an effect is reapplied to the same target.
type Stacking string

const (
	StackNone      Stacking = "none"
	StackRefresh   Stacking = "refresh"
	StackIntensity Stacking = "intensity"
	StackBoth      Stacking = "both"
)

func (s Stacking) Valid() bool {
	switch s {
	case StackNone, StackRefresh, StackIntensity, StackBoth:
		return true
	}
	return false
}

// ScalesIntensity reports whether payloads multiply by the stack count.
func (s Stacking) ScalesIntensity() bool { return s == StackIntensity || s == StackBoth }

// RefreshesDuration reports whether a reapplication extends the duration.
func (s Stacking) RefreshesDuration() bool { return s == StackRefresh || s == StackBoth }

// DeltaMode controls how a stat delta combines with the current value.
type DeltaMode string

const (
	DeltaFlat       DeltaMode = "flat"
	DeltaPercentage DeltaMode = "percentage"
)

// StatDelta modifies one stat while the effect is active. Percentage amounts
// are in percent: 20 means +20%.
type StatDelta struct {
	Stat   string    `json:"stat" yaml:"stat"`
	Mode   DeltaMode `json:"mode" yaml:"mode"`
	Amount float64   `json:"amount" yaml:"amount"`
}

// EffectSpec is the declarative template an EffectInstance is created from.
type EffectSpec struct {
	ID             string                 `json:"id" yaml:"id"`
	Name           string                 `json:"name" yaml:"name"`
	Category       EffectCategory         `json:"category" yaml:"category"`
	Duration       int                    `json:"duration" yaml:"duration"`
	Trigger        Trigger                `json:"trigger" yaml:"trigger"`
	DamagePerTurn  int                    `json:"damage_per_turn,omitempty" yaml:"damage_per_turn"`
	HealPerTurn    int                    `json:"heal_per_turn,omitempty" yaml:"heal_per_turn"`
	DamageType     DamageType             `json:"damage_type,omitempty" yaml:"damage_type"`
	StatDeltas     []StatDelta            `json:"stat_deltas,omitempty" yaml:"stat_deltas"`
	Stacking       Stacking               `json:"stacking" yaml:"stacking"`
	MaxStacks      int                    `json:"max_stacks" yaml:"max_stacks"`
	DamageTaken    map[DamageType]float64 `json:"damage_taken,omitempty" yaml:"damage_taken"`     // incoming damage multipliers
	ImmuneEffects  []string               `json:"immune_effects,omitempty" yaml:"immune_effects"` // effect ids or categories blocked while active
	// PreventsAction leaves only pass open to the target while active.
	PreventsAction bool                   `json:"prevents_action,omitempty" yaml:"prevents_action"`
}

// Validate reports a malformed spec. Missing optional fields are defaulted by
// WithDefaults before validation.
func (s EffectSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEffect)
	}
	if !s.Category.Valid() {
		return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidEffect, s.ID, s.Category)
	}
	if !s.Trigger.Valid() {
		return fmt.Errorf("%w: %s: unknown trigger %q", ErrInvalidEffect, s.ID, s.Trigger)
	}
	if !s.Stacking.Valid() {
		return fmt.Errorf("%w: %s: unknown stacking %q", ErrInvalidEffect, s.ID, s.Stacking)
	}
	if s.Duration == 0 || s.Duration < Permanent {
		return fmt.Errorf("%w: %s: duration must be positive or permanent", ErrInvalidEffect, s.ID)
	}
	if s.DamagePerTurn < 0 || s.HealPerTurn < 0 {
		return fmt.Errorf("%w: %s: per-turn payload cannot be negative", ErrInvalidEffect, s.ID)
	}
	if s.DamagePerTurn > 0 && s.DamageType != "" && !s.DamageType.Valid() {
		return fmt.Errorf("%w: %s: unknown damage type %q", ErrInvalidEffect, s.ID, s.DamageType)
	}
	for _, d := range s.StatDeltas {
		if d.Stat == "" {
			return fmt.Errorf("%w: %s: stat delta without stat", ErrInvalidEffect, s.ID)
		}
		if d.Mode != DeltaFlat && d.Mode != DeltaPercentage {
			return fmt.Errorf("%w: %s: unknown delta mode %q", ErrInvalidEffect, s.ID, d.Mode)
		}
	}
	return nil
}

// WithDefaults fills the optional fields of a spec.
func (s EffectSpec) WithDefaults() EffectSpec {
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.Trigger == "" {
		s.Trigger = TriggerTurnStart
	}
	if s.Stacking == "" {
		s.Stacking = StackNone
	}
	if s.MaxStacks < 1 {
		s.MaxStacks = 1
	}
	if s.DamagePerTurn > 0 && s.DamageType == "" {
		s.DamageType = DamageTrue
	}
	s.StatDeltas = append([]StatDelta(nil), s.StatDeltas...)
	for i := range s.StatDeltas {
		if s.StatDeltas[i].Mode == "" {
			s.StatDeltas[i].Mode = DeltaFlat
		}
	}
	return s
}

// Stackable reports whether reapplication adds stacks.
func (s EffectSpec) Stackable() bool {
	return s.Stacking != StackNone && s.MaxStacks > 1
}

// EffectInstance is an effect living on one combatant.
type EffectInstance struct {
	InstanceID     string                 `json:"instance_id"`
	EffectID       string                 `json:"effect_id"`
	Name           string                 `json:"name"`
	Category       EffectCategory         `json:"category"`
	Duration       int                    `json:"duration"`
	Trigger        Trigger                `json:"trigger"`
	DamagePerTurn  int                    `json:"damage_per_turn,omitempty"`
	HealPerTurn    int                    `json:"heal_per_turn,omitempty"`
	DamageType     DamageType             `json:"damage_type,omitempty"`
	StatDeltas     []StatDelta            `json:"stat_deltas,omitempty"`
	Stacking       Stacking               `json:"stacking"`
	Stacks         int                    `json:"stacks"`
	MaxStacks      int                    `json:"max_stacks"`
	SourceID       string                 `json:"source_id,omitempty"`
	DamageTaken    map[DamageType]float64 `json:"damage_taken,omitempty"`
	ImmuneEffects  []string               `json:"immune_effects,omitempty"`
	PreventsAction bool                   `json:"prevents_action,omitempty"`

	// Before holds each touched stat as it was when the effect first applied;
	// Applied holds the realized change currently in force.
	Before  map[string]float64 `json:"before,omitempty"`
	Applied map[string]float64 `json:"applied,omitempty"`
}

// Permanent reports whether the instance ignores duration ticks.
func (e *EffectInstance) Permanent() bool { return e.Duration == Permanent }

// Stackable mirrors EffectSpec.Stackable for a live instance.
func (e *EffectInstance) Stackable() bool {
	return e.Stacking != StackNone && e.MaxStacks > 1
}

// Scale is the payload multiplier for the current stack count.
func (e *EffectInstance) Scale() int {
	if e.Stacking.ScalesIntensity() && e.Stacks > 1 {
		return e.Stacks
	}
	return 1
}

// TickDamage and TickHealing are the per-turn payloads after stack scaling.
func (e *EffectInstance) TickDamage() int { return e.DamagePerTurn * e.Scale() }
func (e *EffectInstance) TickHealing() int { return e.HealPerTurn * e.Scale() }

// disabling names the conditions that stop a combatant from acting even
// without an explicit prevents_action flag.
var disabling = map[string]bool{"stunned": true, "paralyzed": true, "unconscious": true}

// Disables reports whether the instance keeps its bearer from acting.
func (e *EffectInstance) Disables() bool {
	if e.PreventsAction {
		return true
	}
	return e.Category == CategoryCondition &&
		(disabling[strings.ToLower(e.EffectID)] || disabling[strings.ToLower(e.Name)])
}

// Blocks reports whether this instance grants immunity to the given effect.
func (e *EffectInstance) Blocks(effectID string, category EffectCategory) bool {
	for _, id := range e.ImmuneEffects {
		if id == effectID || id == string(category) {
			return true
		}
	}
	return false
}

func (e *EffectInstance) Clone() *EffectInstance {
	out := *e
	out.StatDeltas = append([]StatDelta(nil), e.StatDeltas...)
	out.ImmuneEffects = append([]string(nil), e.ImmuneEffects...)
	if e.DamageTaken != nil {
		out.DamageTaken = make(map[DamageType]float64, len(e.DamageTaken))
		for k, v := range e.DamageTaken {
			out.DamageTaken[k] = v
		}
	}
	if e.Before != nil {
		out.Before = make(map[string]float64, len(e.Before))
		for k, v := range e.Before {
			out.Before[k] = v
		}
	}
	if e.Applied != nil {
		out.Applied = make(map[string]float64, len(e.Applied))
		for k, v := range e.Applied {
			out.Applied[k] = v
		}
	}
	return &out
}
