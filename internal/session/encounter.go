package session

import (
	"fmt"

	"github.com/suderio/skirmish/internal/data"
)

// FromEncounter builds a spec from an encounter file. Every call spawns a
// fresh roster, so one file can seed many combats.
func FromEncounter(l *data.Loader, enc *data.Encounter) (EncounterSpec, error) {
	roster, catalog, err := l.Build(enc)
	if err != nil {
		return EncounterSpec{}, fmt.Errorf("encounter %q: %w", enc.Name, err)
	}
	return EncounterSpec{
		Name:        enc.Name,
		Combatants:  roster,
		Catalog:     catalog,
		Environment: enc.Environment,
		Cell:        enc.Grid.Cell,
		Obstacles:   enc.Grid.Obstacles,
		Seed:        enc.Seed,
	}, nil
}
