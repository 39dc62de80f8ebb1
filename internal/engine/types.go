// Package engine holds the combat data model shared by every subsystem:
// combatants, effect instances, the authoritative CombatState, the outbound
// event types and the error taxonomy.
package engine

import (
	"fmt"
	"math"
)

// --- Enumerations ---

// Faction tags the side a combatant fights for.
type Faction string

const (
	FactionPlayer  Faction = "player"
	FactionEnemy   Faction = "enemy"
	FactionNeutral Faction = "neutral"
)

// Valid reports whether f is a known faction.
func (f Faction) Valid() bool {
	switch f {
	case FactionPlayer, FactionEnemy, FactionNeutral:
		return true
	}
	return false
}

// DamageType classifies incoming damage for mitigation and effectiveness.
type DamageType string

const (
	DamagePhysical  DamageType = "physical"
	DamageMagical   DamageType = "magical"
	DamageTrue      DamageType = "true"
	DamageFire      DamageType = "fire"
	DamageIce       DamageType = "ice"
	DamageLightning DamageType = "lightning"
	DamagePoison    DamageType = "poison"
	DamageHoly      DamageType = "holy"
	DamageShadow    DamageType = "shadow"
)

// Valid reports whether d is a known damage type.
func (d DamageType) Valid() bool {
	switch d {
	case DamagePhysical, DamageMagical, DamageTrue, DamageFire, DamageIce,
		DamageLightning, DamagePoison, DamageHoly, DamageShadow:
		return true
	}
	return false
}

// --- Geometry ---

// Vec3 is a position on the battlefield. Two-dimensional maps leave Z at zero.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Distance returns the straight-line distance between v and o.
func (v Vec3) Distance(o Vec3) float64 {
	dx, dy, dz := o.X-v.X, o.Y-v.Y, o.Z-v.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// --- Combatant model ---

// Resource is a spendable pool such as mana or stamina.
type Resource struct {
	Current int `json:"current" yaml:"current"`
	Max     int `json:"max" yaml:"max"`
}

// Weapon describes the damage profile used by a plain attack.
type Weapon struct {
	Name       string     `json:"name,omitempty" yaml:"name"`
	Base       float64    `json:"base" yaml:"base"`
	Scaling    float64    `json:"scaling" yaml:"scaling"`
	Stat       string     `json:"stat" yaml:"stat"`
	DamageType DamageType `json:"damage_type" yaml:"damage_type"`
}

// Named stat keys that map onto dedicated Combatant fields instead of the
// free-form Stats map.
const (
	StatAccuracy           = "accuracy"
	StatEvasion            = "evasion"
	StatArmor              = "armor"
	StatMagicResistance    = "magic_resistance"
	StatCriticalChance     = "critical_chance"
	StatCriticalMultiplier = "critical_multiplier"
	StatStealth            = "stealth"
	StatDetection          = "detection"
)

// Combatant is one participant of an encounter. It is plain data owned by the
// CombatState that contains it; subsystems mutate it in place.
type Combatant struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Faction Faction `json:"faction" yaml:"faction"`

	HP    int `json:"hp" yaml:"hp"`
	MaxHP int `json:"max_hp" yaml:"max_hp"`

	Resources map[string]Resource `json:"resources,omitempty" yaml:"resources"`
	Position  *Vec3               `json:"position,omitempty" yaml:"position"`
	Effects   []*EffectInstance   `json:"effects,omitempty" yaml:"-"`
	Stats     map[string]float64  `json:"stats,omitempty" yaml:"stats"` // e.g. "strength": 12

	Accuracy           float64                `json:"accuracy" yaml:"accuracy"`
	Evasion            float64                `json:"evasion" yaml:"evasion"`
	Armor              float64                `json:"armor" yaml:"armor"`
	MagicResistance    float64                `json:"magic_resistance" yaml:"magic_resistance"`
	Resistances        map[DamageType]float64 `json:"resistances,omitempty" yaml:"resistances"` // percent, per type
	CriticalChance     *float64               `json:"critical_chance,omitempty" yaml:"critical_chance"` // nil takes the encounter default
	CriticalMultiplier float64                `json:"critical_multiplier" yaml:"critical_multiplier"`

	Weaknesses       []DamageType `json:"weaknesses,omitempty" yaml:"weaknesses"`
	ResistantTo      []DamageType `json:"resistant_to,omitempty" yaml:"resistant_to"`
	ImmuneTo         []DamageType `json:"immune_to,omitempty" yaml:"immune_to"`
	EffectImmunities []string     `json:"effect_immunities,omitempty" yaml:"effect_immunities"`

	Initiative *float64       `json:"initiative,omitempty" yaml:"initiative"` // overrides the rolled score
	Weapon     Weapon         `json:"weapon" yaml:"weapon"`
	Skills     []string       `json:"skills,omitempty" yaml:"skills"`
	Inventory  map[string]int `json:"inventory,omitempty" yaml:"inventory"`

	Stealth   float64 `json:"stealth" yaml:"stealth"`
	Detection float64 `json:"detection" yaml:"detection"`

	Readied *ReadiedAction `json:"readied,omitempty" yaml:"-"`
}

// NewCombatant builds a combatant at full health with empty maps ready for use.
func NewCombatant(id, name string, faction Faction, maxHP int) *Combatant {
	c := &Combatant{
		ID:      id,
		Name:    name,
		Faction: faction,
		HP:      maxHP,
		MaxHP:   maxHP,
	}
	c.Normalize()
	return c
}

// Normalize fills nil maps and defaults so decoded combatants behave like
// constructed ones. HP is re-clamped against MaxHP.
func (c *Combatant) Normalize() {
	if c.Faction == "" {
		c.Faction = FactionNeutral
	}
	if c.Stats == nil {
		c.Stats = make(map[string]float64)
	}
	if c.Resources == nil {
		c.Resources = make(map[string]Resource)
	}
	if c.Resistances == nil {
		c.Resistances = make(map[DamageType]float64)
	}
	if c.Inventory == nil {
		c.Inventory = make(map[string]int)
	}
	if c.Weapon.DamageType == "" {
		c.Weapon.DamageType = DamagePhysical
	}
	if c.MaxHP < 0 {
		c.MaxHP = 0
	}
	c.SetHP(c.HP)
}

// Alive is derived from HP.
func (c *Combatant) Alive() bool {
	return c.HP > 0
}

// SetHP stores hp clamped to [0, MaxHP] and returns the stored value.
func (c *Combatant) SetHP(hp int) int {
	switch {
	case hp < 0:
		hp = 0
	case hp > c.MaxHP:
		hp = c.MaxHP
	}
	c.HP = hp
	return hp
}

// Stat reads a named stat. Dedicated fields take precedence over the Stats map.
func (c *Combatant) Stat(name string) float64 {
	switch name {
	case StatAccuracy:
		return c.Accuracy
	case StatEvasion:
		return c.Evasion
	case StatArmor:
		return c.Armor
	case StatMagicResistance:
		return c.MagicResistance
	case StatCriticalChance:
		if c.CriticalChance == nil {
			return 0
		}
		return *c.CriticalChance
	case StatCriticalMultiplier:
		return c.CriticalMultiplier
	case StatStealth:
		return c.Stealth
	case StatDetection:
		return c.Detection
	}
	return c.Stats[name]
}

// SetStat writes a named stat, routing dedicated names to their fields.
func (c *Combatant) SetStat(name string, v float64) {
	switch name {
	case StatAccuracy:
		c.Accuracy = v
	case StatEvasion:
		c.Evasion = v
	case StatArmor:
		c.Armor = v
	case StatMagicResistance:
		c.MagicResistance = v
	case StatCriticalChance:
		c.CriticalChance = &v
	case StatCriticalMultiplier:
		c.CriticalMultiplier = v
	case StatStealth:
		c.Stealth = v
	case StatDetection:
		c.Detection = v
	default:
		if c.Stats == nil {
			c.Stats = make(map[string]float64)
		}
		c.Stats[name] = v
	}
}

// Effect returns the active instance of effectID, if any.
func (c *Combatant) Effect(effectID string) *EffectInstance {
	for _, e := range c.Effects {
		if e.EffectID == effectID {
			return e
		}
	}
	return nil
}

// Knows reports whether the combatant may use skillID. An empty skill list
// means the combatant is not restricted.
func (c *Combatant) Knows(skillID string) bool {
	if len(c.Skills) == 0 {
		return true
	}
	for _, s := range c.Skills {
		if s == skillID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, used by snapshots so callers never alias live state.
func (c *Combatant) Clone() *Combatant {
	out := *c
	if c.Position != nil {
		p := *c.Position
		out.Position = &p
	}
	if c.Initiative != nil {
		v := *c.Initiative
		out.Initiative = &v
	}
	if c.CriticalChance != nil {
		v := *c.CriticalChance
		out.CriticalChance = &v
	}
	if c.Readied != nil {
		r := *c.Readied
		r.TargetIDs = append([]string(nil), c.Readied.TargetIDs...)
		out.Readied = &r
	}
	out.Resources = make(map[string]Resource, len(c.Resources))
	for k, v := range c.Resources {
		out.Resources[k] = v
	}
	out.Stats = make(map[string]float64, len(c.Stats))
	for k, v := range c.Stats {
		out.Stats[k] = v
	}
	out.Resistances = make(map[DamageType]float64, len(c.Resistances))
	for k, v := range c.Resistances {
		out.Resistances[k] = v
	}
	out.Inventory = make(map[string]int, len(c.Inventory))
	for k, v := range c.Inventory {
		out.Inventory[k] = v
	}
	out.Weaknesses = append([]DamageType(nil), c.Weaknesses...)
	out.ResistantTo = append([]DamageType(nil), c.ResistantTo...)
	out.ImmuneTo = append([]DamageType(nil), c.ImmuneTo...)
	out.EffectImmunities = append([]string(nil), c.EffectImmunities...)
	out.Skills = append([]string(nil), c.Skills...)
	out.Effects = make([]*EffectInstance, 0, len(c.Effects))
	for _, e := range c.Effects {
		out.Effects = append(out.Effects, e.Clone())
	}
	return &out
}

func containsType(list []DamageType, t DamageType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

// IsWeakTo, IsResistantTo and IsImmuneTo query the innate elemental lists.
func (c *Combatant) IsWeakTo(t DamageType) bool { return containsType(c.Weaknesses, t) }
func (c *Combatant) IsResistantTo(t DamageType) bool { return containsType(c.ResistantTo, t) }
func (c *Combatant) IsImmuneTo(t DamageType) bool { return containsType(c.ImmuneTo, t) }
