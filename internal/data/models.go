package data

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/engine"
	"github.com/suderio/skirmish/internal/fog"
)

// Encounter is the YAML description of one fight: who takes part, the
// terrain and the rules data their actions refer to.
type Encounter struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Seed        uint64            `yaml:"seed"`
	Catalogs    []string          `yaml:"catalogs"` // shared catalog files merged before the inline one
	Environment map[string]string `yaml:"environment"`

	Grid struct {
		Cell      float64        `yaml:"cell"`
		Obstacles []fog.Obstacle `yaml:"obstacles"`
	} `yaml:"grid"`

	Combatants []Entry `yaml:"combatants"`

	action.Catalog `yaml:",inline"`
}

// Entry is one line of the roster. With a template, the referenced combatant
// file is loaded first and the entry's own fields override it. Count spawns
// numbered copies.
type Entry struct {
	Template string
	Count    int

	node yaml.Node
}

func (e *Entry) UnmarshalYAML(n *yaml.Node) error {
	var head struct {
		Template string `yaml:"template"`
		Count    int    `yaml:"count"`
	}
	if err := n.Decode(&head); err != nil {
		return err
	}
	e.Template = head.Template
	e.Count = head.Count
	e.node = *n
	return nil
}

// decodeInto overlays the entry's fields on c. Maps merge key by key.
func (e *Entry) decodeInto(c *engine.Combatant) error {
	if e.node.Kind == 0 {
		return nil
	}
	if err := e.node.Decode(c); err != nil {
		return fmt.Errorf("line %d: %w", e.node.Line, err)
	}
	return nil
}
