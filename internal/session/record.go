package session

import (
	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/engine"
	"github.com/suderio/skirmish/internal/fog"
)

// record is the document saved per combat. The snapshot alone cannot resume
// a fight: actions resolve against the catalog and sight against the grid.
type record struct {
	Name      string           `json:"name,omitempty"`
	Seed      uint64           `json:"seed"`
	Catalog   *action.Catalog  `json:"catalog"`
	Cell      float64          `json:"cell,omitempty"`
	Obstacles []fog.Obstacle   `json:"obstacles,omitempty"`
	Snapshot  *engine.Snapshot `json:"snapshot"`
}
