// Package fog answers who can see whom. Line of sight comes from an Area and
// is cached briefly; visibility is a detection-versus-stealth contest bucketed
// into four statuses; awareness builds up per observer and target pair.
package fog

//go:generate go tool mockgen -destination=mock_area_test.go -package=fog github.com/suderio/skirmish/internal/fog Area

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/suderio/skirmish/internal/engine"
)

// Status is the bucketed result of a visibility query.
type Status string

const (
	StatusVisible   Status = "visible"
	StatusPartially Status = "partially"
	StatusHidden    Status = "hidden"
	StatusUnaware   Status = "unaware"
)

// Rank orders statuses from unaware (0) to visible (3).
func (s Status) Rank() int {
	switch s {
	case StatusVisible:
		return 3
	case StatusPartially:
		return 2
	case StatusHidden:
		return 1
	}
	return 0
}

const (
	DefaultTTL     = 500 * time.Millisecond
	DefaultProfile = 50.0

	distancePenalty  = 1.0
	awarenessWeight  = 0.25
	failedCheckBoost = 10.0
)

// Area supplies positions and line-of-sight tests.
type Area interface {
	Position(id string) (engine.Vec3, bool)
	LineOfSight(a, b engine.Vec3) bool
}

// Mover is implemented by areas that track positions themselves.
type Mover interface {
	Move(id string, pos engine.Vec3)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Profile is an entity's stealth and detection, each in [0,100].
type Profile struct {
	Stealth   float64 `json:"stealth"`
	Detection float64 `json:"detection"`
}

// Update changes part of an entity's profile. Nil fields are left alone.
type Update struct {
	Stealth   *float64
	Detection *float64
	Position  *engine.Vec3
}

// Entry is the cached view one observer has of one target.
type Entry struct {
	Observer   string    `json:"observer"`
	Target     string    `json:"target"`
	Status     Status    `json:"status"`
	Awareness  float64   `json:"awareness"`
	ComputedAt time.Time `json:"computed_at"`

	stale bool
}

// Check is the result of a contested perception roll.
type Check struct {
	Success      bool    `json:"success"`
	Margin       float64 `json:"margin"`
	ObserverRoll int     `json:"observer_roll"`
	TargetRoll   int     `json:"target_roll"`
}

type pair struct{ a, b string }

func unordered(a, b string) pair {
	if b < a {
		a, b = b, a
	}
	return pair{a, b}
}

type sight struct {
	clear    bool
	distance float64
	expires  time.Time
}

type Option func(*Tracker)

func WithClock(c Clock) Option { return func(t *Tracker) { t.clock = c } }
func WithTTL(d time.Duration) Option { return func(t *Tracker) { t.ttl = d } }
func WithRNG(r engine.RNG) Option { return func(t *Tracker) { t.rng = r } }
func WithLogger(l *slog.Logger) Option { return func(t *Tracker) { t.logger = l } }

// Tracker is safe for concurrent use and does not depend on the combat
// phase, so it can be queried while a combat is paused.
type Tracker struct {
	mu     sync.Mutex
	area   Area
	clock  Clock
	rng    engine.RNG
	ttl    time.Duration
	logger *slog.Logger

	profiles map[string]Profile
	sights   map[pair]sight
	entries  map[pair]*Entry // keyed observer, target
}

func New(area Area, opts ...Option) *Tracker {
	t := &Tracker{
		area:     area,
		clock:    systemClock{},
		ttl:      DefaultTTL,
		logger:   slog.Default(),
		profiles: make(map[string]Profile),
		sights:   make(map[pair]sight),
		entries:  make(map[pair]*Entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = engine.NewRNG(0)
	}
	return t
}

// UpdateEntity records profile changes for id. Moving an entity drops every
// cached sight line and visibility entry involving it.
func (t *Tracker) UpdateEntity(id string, u Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.profile(id)
	if u.Stealth != nil {
		p.Stealth = clamp(*u.Stealth)
	}
	if u.Detection != nil {
		p.Detection = clamp(*u.Detection)
	}
	t.profiles[id] = p

	if u.Position != nil {
		if m, ok := t.area.(Mover); ok {
			m.Move(id, *u.Position)
		}
		for k := range t.sights {
			if k.a == id || k.b == id {
				delete(t.sights, k)
			}
		}
	}
	for k, e := range t.entries {
		if k.a == id || k.b == id {
			e.stale = true
		}
	}
}

// Profile returns the stored profile, defaulting unknown ids to 50/50.
func (t *Tracker) Profile(id string) Profile {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.profile(id)
}

func (t *Tracker) profile(id string) Profile {
	if p, ok := t.profiles[id]; ok {
		return p
	}
	return Profile{Stealth: DefaultProfile, Detection: DefaultProfile}
}

// LineOfSight reports whether a and b can see each other and how far apart
// they are. Entities without a position never have line of sight.
func (t *Tracker) LineOfSight(a, b string) (bool, float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lineOfSight(a, b)
}

func (t *Tracker) lineOfSight(a, b string) (bool, float64) {
	key := unordered(a, b)
	now := t.clock.Now()
	if s, ok := t.sights[key]; ok && now.Before(s.expires) {
		return s.clear, s.distance
	}

	pa, okA := t.area.Position(a)
	pb, okB := t.area.Position(b)
	if !okA || !okB {
		return false, math.Inf(1)
	}
	s := sight{
		clear:    t.area.LineOfSight(pa, pb),
		distance: pa.Distance(pb),
		expires:  now.Add(t.ttl),
	}
	t.sights[key] = s
	return s.clear, s.distance
}

// Visibility returns how well observer perceives target. Results are cached
// until either entity changes, the TTL passes, or recalculate is set.
func (t *Tracker) Visibility(observer, target string, recalculate bool) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visibility(observer, target, recalculate).Status
}

func (t *Tracker) visibility(observer, target string, recalculate bool) *Entry {
	now := t.clock.Now()
	e := t.entry(observer, target)
	if !recalculate && !e.stale && !e.ComputedAt.IsZero() && now.Before(e.ComputedAt.Add(t.ttl)) {
		return e
	}

	los, distance := t.lineOfSight(observer, target)
	if !los {
		e.Status = StatusUnaware
	} else {
		score := t.profile(observer).Detection - t.profile(target).Stealth -
			distance*distancePenalty + e.Awareness*awarenessWeight
		e.Status = bucket(score)
	}
	e.ComputedAt = now
	e.stale = false
	return e
}

func bucket(score float64) Status {
	switch {
	case score >= 40:
		return StatusVisible
	case score >= 10:
		return StatusPartially
	case score >= -20:
		return StatusHidden
	}
	return StatusUnaware
}

func (t *Tracker) entry(observer, target string) *Entry {
	key := pair{observer, target}
	e, ok := t.entries[key]
	if !ok {
		e = &Entry{Observer: observer, Target: target, Status: StatusUnaware}
		t.entries[key] = e
	}
	return e
}

// UpdateAwareness adds delta to observer's awareness of target, clamped to
// [0,100], and returns the new value.
func (t *Tracker) UpdateAwareness(observer, target string, delta float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addAwareness(observer, target, delta)
}

func (t *Tracker) addAwareness(observer, target string, delta float64) float64 {
	e := t.entry(observer, target)
	e.Awareness = clamp(e.Awareness + delta)
	e.stale = true
	return e.Awareness
}

// PerceptionCheck rolls d20 + detection + bonus against d20 + stealth +
// distance. A failure with line of sight builds awareness.
func (t *Tracker) PerceptionCheck(observer, target string, bonus float64) Check {
	t.mu.Lock()
	defer t.mu.Unlock()

	los, distance := t.lineOfSight(observer, target)
	if !los {
		return Check{Margin: math.Inf(-1)}
	}
	c := Check{ObserverRoll: engine.D20(t.rng), TargetRoll: engine.D20(t.rng)}
	attack := float64(c.ObserverRoll) + t.profile(observer).Detection + bonus
	defense := float64(c.TargetRoll) + t.profile(target).Stealth + distance
	c.Margin = attack - defense
	c.Success = c.Margin > 0
	if !c.Success {
		awareness := t.addAwareness(observer, target, failedCheckBoost)
		t.logger.Debug("perception check failed", "observer", observer, "target", target,
			"margin", c.Margin, "awareness", awareness)
	}
	return c
}

// VisibleEntities returns the candidates observer perceives at least at
// minimum, keyed by id.
func (t *Tracker) VisibleEntities(observer string, minimum Status, ids []string) map[string]Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Status)
	for _, id := range ids {
		if id == observer {
			continue
		}
		if s := t.visibility(observer, id, false).Status; s.Rank() >= minimum.Rank() {
			out[id] = s
		}
	}
	return out
}

// UpdateAll recomputes visibility for every ordered pair of ids.
func (t *Tracker) UpdateAll(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range ids {
		for _, target := range ids {
			if o != target {
				t.visibility(o, target, true)
			}
		}
	}
}

// Reset forgets every sight line, visibility entry and awareness score.
// Profiles are kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.sights)
	clear(t.entries)
}

// Entries returns a copy of the visibility cache ordered by observer, then
// target.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(a.Observer, b.Observer); c != 0 {
			return c
		}
		return cmp.Compare(a.Target, b.Target)
	})
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
