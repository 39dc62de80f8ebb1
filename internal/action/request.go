// Package action validates and executes one submitted action against a
// CombatState. Validation completes before anything is mutated, so a
// rejected request leaves the state untouched.
package action

import (
	"github.com/suderio/skirmish/internal/damage"
	"github.com/suderio/skirmish/internal/engine"
)

// Kind is the closed set of actions a combatant may take on its turn.
type Kind string

const (
	KindAttack Kind = "attack"
	KindSkill  Kind = "skill"
	KindItem   Kind = "item"
	KindMove   Kind = "move"
	KindPass   Kind = "pass"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindAttack, KindSkill, KindItem, KindMove, KindPass}

func (k Kind) Valid() bool {
	switch k {
	case KindAttack, KindSkill, KindItem, KindMove, KindPass:
		return true
	}
	return false
}

// NeedsTargets reports whether the kind resolves against combatants.
func (k Kind) NeedsTargets() bool {
	return k == KindAttack || k == KindSkill || k == KindItem
}

// Targeting restricts who a skill or item may affect.
type Targeting string

const (
	TargetSelf  Targeting = "self"
	TargetAlly  Targeting = "ally"
	TargetEnemy Targeting = "enemy"
	TargetAll   Targeting = "all"
)

func (t Targeting) Valid() bool {
	switch t {
	case TargetSelf, TargetAlly, TargetEnemy, TargetAll:
		return true
	}
	return false
}

// Allows reports whether target is an acceptable pick for source.
func (t Targeting) Allows(source, target *engine.Combatant) bool {
	switch t {
	case TargetSelf:
		return source.ID == target.ID
	case TargetAlly:
		return source.Faction == target.Faction
	case TargetEnemy:
		return source.Faction != target.Faction
	case TargetAll:
		return true
	}
	return false
}

// Request is one submitted action.
type Request struct {
	Kind      Kind         `json:"kind"`
	SourceID  string       `json:"source_id"`
	TargetIDs []string     `json:"target_ids,omitempty"`
	SkillID   string       `json:"skill_id,omitempty"`
	ItemID    string       `json:"item_id,omitempty"`
	Position  *engine.Vec3 `json:"position,omitempty"`
}

// Detail names the skill or item involved, if any.
func (r Request) Detail() string {
	switch r.Kind {
	case KindSkill:
		return r.SkillID
	case KindItem:
		return r.ItemID
	}
	return ""
}

type Heal struct {
	TargetID string `json:"target_id"`
	Amount   int    `json:"amount"`
}

type Restore struct {
	TargetID string `json:"target_id"`
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

type EffectResult struct {
	TargetID string `json:"target_id"`
	EffectID string `json:"effect_id"`
	Applied  bool   `json:"applied"`
}

// Outcome records everything one action did.
type Outcome struct {
	Request     Request            `json:"request"`
	Targets     []string           `json:"targets,omitempty"`
	Damage      []damage.Breakdown `json:"damage,omitempty"`
	Heals       []Heal             `json:"heals,omitempty"`
	Restores    []Restore          `json:"restores,omitempty"`
	Effects     []EffectResult     `json:"effects,omitempty"`
	Spent       map[string]int     `json:"spent,omitempty"`
	Destination *engine.Vec3       `json:"destination,omitempty"`
}

func (o *Outcome) TotalDamage() int {
	n := 0
	for _, d := range o.Damage {
		n += d.Final
	}
	return n
}

func (o *Outcome) TotalHealing() int {
	n := 0
	for _, h := range o.Heals {
		n += h.Amount
	}
	return n
}

// Killed lists the targets this action brought to zero HP.
func (o *Outcome) Killed() []string {
	var ids []string
	for _, d := range o.Damage {
		if d.Killed {
			ids = append(ids, d.DefenderID)
		}
	}
	return ids
}

// Event summarizes the outcome for the bus.
func (o *Outcome) Event() *engine.ActionExecutedEvent {
	return &engine.ActionExecutedEvent{
		Kind:      string(o.Request.Kind),
		SourceID:  o.Request.SourceID,
		TargetIDs: o.Targets,
		Detail:    o.Request.Detail(),
		Damage:    o.TotalDamage(),
		Healing:   o.TotalHealing(),
	}
}
