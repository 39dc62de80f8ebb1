// Package damage turns an attack profile into final damage: base from a
// scaling stat, a single critical roll, elemental effectiveness, then armor or
// resistance mitigation, and finally the clamped HP change.
package damage

import (
	"log/slog"
	"math"

	"github.com/suderio/skirmish/internal/engine"
)

const (
	DefaultCriticalChance     = 0.05
	DefaultCriticalMultiplier = 1.5

	// armorConstant sets the armor value that halves physical damage.
	armorConstant = 100.0
)

// Modifier contributes extra incoming-damage multipliers, such as resistance
// or vulnerability granted by active effects.
type Modifier interface {
	DamageMultiplier(target *engine.Combatant, t engine.DamageType) float64
}

type Option func(*Calculator)

func WithModifier(m Modifier) Option { return func(c *Calculator) { c.mod = m } }
func WithLogger(l *slog.Logger) Option { return func(c *Calculator) { c.logger = l } }
func WithCritical(chance, multiplier float64) Option {
	return func(c *Calculator) {
		c.critChance = chance
		c.critMultiplier = multiplier
	}
}

type Calculator struct {
	rng            engine.RNG
	mod            Modifier
	logger         *slog.Logger
	critChance     float64
	critMultiplier float64
}

func New(rng engine.RNG, opts ...Option) *Calculator {
	c := &Calculator{
		rng:            rng,
		logger:         slog.Default(),
		critChance:     DefaultCriticalChance,
		critMultiplier: DefaultCriticalMultiplier,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hit describes one damaging strike.
type Hit struct {
	Base          float64
	Scaling       float64
	Stat          string
	Type          engine.DamageType
	AllowCritical bool
	// Optional overrides of the attacker's critical chance and multiplier.
	CritChance     *float64
	CritMultiplier *float64
}

// WeaponHit builds the Hit for a plain attack with w.
func WeaponHit(w engine.Weapon) Hit {
	return Hit{Base: w.Base, Scaling: w.Scaling, Stat: w.Stat, Type: w.DamageType, AllowCritical: true}
}

// Breakdown exposes every intermediate value of ApplyFullDamage.
type Breakdown struct {
	AttackerID     string            `json:"attacker_id,omitempty"`
	DefenderID     string            `json:"defender_id"`
	Type           engine.DamageType `json:"type"`
	Base           int               `json:"base"`
	Critical       bool              `json:"critical"`
	CritMultiplier float64           `json:"crit_multiplier"`
	Effectiveness  float64           `json:"effectiveness"`
	Mitigation     float64           `json:"mitigation"`
	Final          int               `json:"final"`
	HP             int               `json:"hp"`
	Killed         bool              `json:"killed"`
	Immune         bool              `json:"immune"`
}

// BaseDamage is base + stat*scaling, floored and never negative.
func (c *Calculator) BaseDamage(attacker *engine.Combatant, base, scaling float64, stat string) int {
	v := base
	if attacker != nil && stat != "" {
		v += attacker.Stat(stat) * scaling
	}
	return max(0, int(math.Floor(v)))
}

// DefaultChance is the critical chance of attackers that declare none.
func (c *Calculator) DefaultChance() float64 { return c.critChance }

// CriticalRoll draws exactly one value. Overrides win over the attacker's own
// fields, which win over the calculator defaults. The multiplier returned is
// 1 when the roll is not a critical.
func (c *Calculator) CriticalRoll(attacker *engine.Combatant, chance, multiplier *float64) (bool, float64) {
	effChance, effMult := c.critChance, c.critMultiplier
	if attacker != nil {
		if attacker.CriticalChance != nil {
			effChance = *attacker.CriticalChance
		}
		if attacker.CriticalMultiplier > 0 {
			effMult = attacker.CriticalMultiplier
		}
	}
	if chance != nil {
		effChance = *chance
	}
	if multiplier != nil {
		effMult = *multiplier
	}

	if c.rng.Float64() < effChance {
		return true, effMult
	}
	return false, 1
}

// Mitigation returns the fraction of damage the defender absorbs, in [0,1].
func (c *Calculator) Mitigation(t engine.DamageType, defender *engine.Combatant) float64 {
	switch t {
	case engine.DamageTrue:
		return 0
	case engine.DamagePhysical:
		armor := max(0, defender.Armor)
		return armor / (armor + armorConstant)
	default:
		res, ok := defender.Resistances[t]
		if !ok {
			res = defender.MagicResistance
		}
		return clamp01(res / 100)
	}
}

// Mitigate reduces damage by the defender's mitigation. At least one point
// always lands.
func (c *Calculator) Mitigate(damage float64, t engine.DamageType, defender *engine.Combatant) (int, float64) {
	m := c.Mitigation(t, defender)
	final := int(math.RoundToEven(damage * (1 - m)))
	return max(1, final), m
}

// ElementalEffectiveness is 0 for immunity, 2 for weakness, 0.5 for
// resistance and 1 otherwise, folded with any effect-granted multipliers.
func (c *Calculator) ElementalEffectiveness(t engine.DamageType, defender *engine.Combatant) float64 {
	if defender.IsImmuneTo(t) {
		return 0
	}
	m := 1.0
	switch {
	case defender.IsWeakTo(t):
		m = 2.0
	case defender.IsResistantTo(t):
		m = 0.5
	}
	if c.mod != nil {
		m *= c.mod.DamageMultiplier(defender, t)
	}
	return max(0, m)
}

// ApplyFullDamage runs base, critical, effectiveness and mitigation in that
// order, then applies the result to the defender's HP.
func (c *Calculator) ApplyFullDamage(attacker, defender *engine.Combatant, hit Hit) Breakdown {
	if hit.Type == "" {
		hit.Type = engine.DamagePhysical
	}
	b := Breakdown{DefenderID: defender.ID, Type: hit.Type, CritMultiplier: 1}
	if attacker != nil {
		b.AttackerID = attacker.ID
	}

	b.Base = c.BaseDamage(attacker, hit.Base, hit.Scaling, hit.Stat)
	dmg := float64(b.Base)

	if hit.AllowCritical {
		b.Critical, b.CritMultiplier = c.CriticalRoll(attacker, hit.CritChance, hit.CritMultiplier)
		dmg *= b.CritMultiplier
	}

	b.Effectiveness = c.ElementalEffectiveness(hit.Type, defender)
	if b.Effectiveness == 0 {
		b.Immune = true
		b.HP = defender.HP
		return b
	}
	dmg *= b.Effectiveness

	b.Final, b.Mitigation = c.Mitigate(dmg, hit.Type, defender)

	wasAlive := defender.Alive()
	b.HP = defender.SetHP(defender.HP - b.Final)
	b.Killed = wasAlive && !defender.Alive()

	c.logger.Debug("damage applied",
		"attacker", b.AttackerID, "defender", b.DefenderID, "type", b.Type,
		"base", b.Base, "critical", b.Critical, "final", b.Final, "hp", b.HP)
	return b
}

// ApplyHealing restores up to amount HP and returns what was actually healed.
// The dead are not revived.
func (c *Calculator) ApplyHealing(source, target *engine.Combatant, amount int) int {
	if target == nil || amount <= 0 || !target.Alive() {
		return 0
	}
	before := target.HP
	target.SetHP(before + amount)
	healed := target.HP - before
	if healed > 0 && source != nil {
		c.logger.Debug("healing applied", "source", source.ID, "target", target.ID, "amount", healed)
	}
	return healed
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
