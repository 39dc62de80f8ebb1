package fog

import (
	"math"
	"sync"

	"github.com/suderio/skirmish/internal/engine"
)

// Obstacle is an axis-aligned box on the X/Y plane. Opaque obstacles block
// line of sight; the others are terrain only.
type Obstacle struct {
	ID     string      `json:"id" yaml:"id"`
	Center engine.Vec3 `json:"center" yaml:"center"`
	Width  float64     `json:"width" yaml:"width"`
	Depth  float64     `json:"depth" yaml:"depth"`
	Opaque bool        `json:"opaque" yaml:"opaque"`
}

// Contains ignores Z.
func (o Obstacle) Contains(p engine.Vec3) bool {
	hw, hd := o.Width/2, o.Depth/2
	return p.X >= o.Center.X-hw && p.X <= o.Center.X+hw &&
		p.Y >= o.Center.Y-hd && p.Y <= o.Center.Y+hd
}

// Grid is the bundled Area: a set of positions plus obstacles. Line of sight
// is tested by sampling the segment every half cell.
type Grid struct {
	mu        sync.RWMutex
	cell      float64
	positions map[string]engine.Vec3
	obstacles []Obstacle
}

const minSamples = 5

func NewGrid(cell float64, obstacles ...Obstacle) *Grid {
	if cell <= 0 {
		cell = 1
	}
	return &Grid{
		cell:      cell,
		positions: make(map[string]engine.Vec3),
		obstacles: obstacles,
	}
}

func (g *Grid) Position(id string) (engine.Vec3, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.positions[id]
	return p, ok
}

func (g *Grid) Move(id string, pos engine.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positions[id] = pos
}

// Forget drops id's position.
func (g *Grid) Forget(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.positions, id)
}

func (g *Grid) AddObstacle(o Obstacle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.obstacles = append(g.obstacles, o)
}

func (g *Grid) LineOfSight(a, b engine.Vec3) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	length := math.Hypot(b.X-a.X, b.Y-a.Y)
	if length < 1e-4 {
		return true
	}
	steps := max(minSamples, int(length/(g.cell*0.5)))
	for i := 1; i < steps; i++ {
		f := float64(i) / float64(steps)
		p := engine.Vec3{X: a.X + (b.X-a.X)*f, Y: a.Y + (b.Y-a.Y)*f}
		for _, o := range g.obstacles {
			if o.Opaque && o.Contains(p) {
				return false
			}
		}
	}
	return true
}
