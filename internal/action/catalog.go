package action

import (
	"errors"
	"fmt"

	"github.com/suderio/skirmish/internal/engine"
)

// Requirement is a CEL formula that must hold for a skill to be usable.
// Error, when set, replaces the generic rejection message.
type Requirement struct {
	Formula string `json:"formula" yaml:"formula"`
	Error   string `json:"error,omitempty" yaml:"error"`
}

type Skill struct {
	ID            string            `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	Targeting     Targeting         `json:"targeting" yaml:"targeting"`
	Cost          map[string]int    `json:"cost,omitempty" yaml:"cost"`
	Base          float64           `json:"base" yaml:"base"`
	Scaling       float64           `json:"scaling" yaml:"scaling"`
	Stat          string            `json:"stat" yaml:"stat"`
	DamageType    engine.DamageType `json:"damage_type" yaml:"damage_type"`
	AllowCritical bool              `json:"allow_critical" yaml:"allow_critical"`
	Heal          int               `json:"heal,omitempty" yaml:"heal"`
	Effects       []string          `json:"effects,omitempty" yaml:"effects"`
	Requires      []Requirement     `json:"requires,omitempty" yaml:"requires"`
}

// Damaging reports whether the skill deals damage at all.
func (s Skill) Damaging() bool { return s.Base > 0 || s.Scaling > 0 }

type Item struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Targeting Targeting      `json:"targeting" yaml:"targeting"`
	Heal      int            `json:"heal,omitempty" yaml:"heal"`
	Restore   map[string]int `json:"restore,omitempty" yaml:"restore"`
	Effects   []string       `json:"effects,omitempty" yaml:"effects"`
}

// Catalog holds the skills, items and effect specs an encounter refers to.
type Catalog struct {
	Skills  map[string]Skill             `json:"skills,omitempty" yaml:"skills"`
	Items   map[string]Item              `json:"items,omitempty" yaml:"items"`
	Effects map[string]engine.EffectSpec `json:"effects,omitempty" yaml:"effects"`
}

func NewCatalog() *Catalog {
	return &Catalog{
		Skills:  make(map[string]Skill),
		Items:   make(map[string]Item),
		Effects: make(map[string]engine.EffectSpec),
	}
}

func (c *Catalog) Skill(id string) (Skill, error) {
	s, ok := c.Skills[id]
	if !ok {
		return Skill{}, engine.NotFound("skill", id)
	}
	return s, nil
}

func (c *Catalog) Item(id string) (Item, error) {
	it, ok := c.Items[id]
	if !ok {
		return Item{}, engine.NotFound("item", id)
	}
	return it, nil
}

func (c *Catalog) Effect(id string) (engine.EffectSpec, error) {
	e, ok := c.Effects[id]
	if !ok {
		return engine.EffectSpec{}, engine.NotFound("effect", id)
	}
	return e, nil
}

// Normalize fills ids from map keys and applies default targeting: skills
// aim at enemies, items at the user.
func (c *Catalog) Normalize() {
	if c.Skills == nil {
		c.Skills = make(map[string]Skill)
	}
	if c.Items == nil {
		c.Items = make(map[string]Item)
	}
	if c.Effects == nil {
		c.Effects = make(map[string]engine.EffectSpec)
	}
	for id, s := range c.Skills {
		if s.ID == "" {
			s.ID = id
		}
		if s.Name == "" {
			s.Name = s.ID
		}
		if s.Targeting == "" {
			s.Targeting = TargetEnemy
		}
		if s.DamageType == "" {
			s.DamageType = engine.DamagePhysical
		}
		c.Skills[id] = s
	}
	for id, it := range c.Items {
		if it.ID == "" {
			it.ID = id
		}
		if it.Name == "" {
			it.Name = it.ID
		}
		if it.Targeting == "" {
			it.Targeting = TargetSelf
		}
		c.Items[id] = it
	}
	for id, e := range c.Effects {
		if e.ID == "" {
			e.ID = id
		}
		c.Effects[id] = e.WithDefaults()
	}
}

// Validate checks every entry and every cross reference, joining all
// problems into one error.
func (c *Catalog) Validate() error {
	var errs []error
	for _, id := range engine.SortedIDs(c.Effects) {
		if err := c.Effects[id].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range engine.SortedIDs(c.Skills) {
		s := c.Skills[id]
		if !s.Targeting.Valid() {
			errs = append(errs, fmt.Errorf("skill %s: unknown targeting %q", id, s.Targeting))
		}
		if !s.DamageType.Valid() {
			errs = append(errs, fmt.Errorf("skill %s: unknown damage type %q", id, s.DamageType))
		}
		for res, n := range s.Cost {
			if n < 0 {
				errs = append(errs, fmt.Errorf("skill %s: negative %s cost", id, res))
			}
		}
		errs = append(errs, c.checkEffects("skill", id, s.Effects)...)
	}
	for _, id := range engine.SortedIDs(c.Items) {
		it := c.Items[id]
		if !it.Targeting.Valid() {
			errs = append(errs, fmt.Errorf("item %s: unknown targeting %q", id, it.Targeting))
		}
		errs = append(errs, c.checkEffects("item", id, it.Effects)...)
	}
	return errors.Join(errs...)
}

func (c *Catalog) checkEffects(kind, id string, effects []string) []error {
	var errs []error
	for _, e := range effects {
		if _, ok := c.Effects[e]; !ok {
			errs = append(errs, fmt.Errorf("%s %s: unknown effect %q", kind, id, e))
		}
	}
	return errs
}

// Merge copies other's entries over c's and normalizes the result.
func (c *Catalog) Merge(other *Catalog) {
	if other == nil {
		return
	}
	defer c.Normalize()
	c.Normalize()
	for k, v := range other.Skills {
		c.Skills[k] = v
	}
	for k, v := range other.Items {
		c.Items[k] = v
	}
	for k, v := range other.Effects {
		c.Effects[k] = v
	}
}

// SkillIDs lists skill ids in lexical order.
func (c *Catalog) SkillIDs() []string { return engine.SortedIDs(c.Skills) }

// ItemIDs lists item ids in lexical order.
func (c *Catalog) ItemIDs() []string { return engine.SortedIDs(c.Items) }
