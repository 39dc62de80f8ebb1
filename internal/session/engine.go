// Package session hosts combats for callers: it creates them, serializes
// access per combat and saves a snapshot after every mutation. The snapshots
// taken before recent mutations back Undo.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/combat"
	"github.com/suderio/skirmish/internal/config"
	"github.com/suderio/skirmish/internal/engine"
	"github.com/suderio/skirmish/internal/fog"
	"github.com/suderio/skirmish/internal/persistence"
)

// EncounterSpec is everything needed to start a combat.
type EncounterSpec struct {
	ID          string
	Name        string
	Combatants  []*engine.Combatant
	Catalog     *action.Catalog
	Environment map[string]string
	Cell        float64
	Obstacles   []fog.Obstacle
	// Seed 0 uses the configured seed, or a random one.
	Seed uint64
}

// Result is returned by every mutating call.
type Result struct {
	Outcome  *action.Outcome  `json:"outcome,omitempty"`
	Events   []engine.Event   `json:"-"`
	Snapshot *engine.Snapshot `json:"snapshot"`
}

type Option func(*Engine)

func WithRepository(r persistence.Repository) Option { return func(e *Engine) { e.repo = r } }

func WithConfig(c config.Config) Option { return func(e *Engine) { e.cfg = c } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithRNG replaces the seeded generator factory.
func WithRNG(fn func(seed uint64) engine.RNG) Option { return func(e *Engine) { e.newRNG = fn } }

// Engine hosts any number of combats. Calls on one combat are serialized;
// different combats proceed independently.
type Engine struct {
	mu      sync.Mutex
	combats map[string]*hosted

	repo   persistence.Repository
	cfg    config.Config
	logger *slog.Logger
	now    func() time.Time
	newRNG func(seed uint64) engine.RNG
}

type hosted struct {
	mu     sync.Mutex
	combat *combat.Combat
	record record
	events []engine.Event
	// bus outlives combat swaps so subscriptions survive Undo.
	bus  *engine.Bus
	undo *engine.Ring[*engine.Snapshot]
}

func (e *Engine) host(rec record) *hosted {
	h := &hosted{record: rec, bus: engine.NewBus(e.logger)}
	if e.cfg.UndoDepth > 0 {
		h.undo = engine.NewRing[*engine.Snapshot](e.cfg.UndoDepth)
	}
	return h
}

func (h *hosted) attach(c *combat.Combat) {
	h.combat = c
	c.Subscribe(h.collect)
	c.Subscribe(h.bus.Publish)
}

// remember keeps before as the newest undo point.
func (h *hosted) remember(before *engine.Snapshot) {
	if h.undo != nil {
		h.undo.Push(before)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		combats: make(map[string]*hosted),
		cfg: config.Config{
			HistoryCapacity: 100,
			LogCapacity:     500,
			LOSTTL:          fog.DefaultTTL,
			CritChance:      0.05,
			CritMultiplier:  1.5,
			UndoDepth:       10,
		},
		logger: slog.Default(),
		now:    time.Now,
		newRNG: engine.NewRNG,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateEncounter registers the combatants, starts the combat and returns
// its first snapshot.
func (e *Engine) CreateEncounter(ctx context.Context, spec EncounterSpec) (*engine.Snapshot, error) {
	if len(spec.Combatants) == 0 {
		return nil, engine.Reject("an encounter needs combatants")
	}
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	seed := spec.Seed
	if seed == 0 {
		seed = e.cfg.Seed
	}
	if seed == 0 {
		seed = engine.NewSeed()
	}
	catalog := spec.Catalog
	if catalog == nil {
		catalog = action.NewCatalog()
	}

	e.mu.Lock()
	if _, ok := e.combats[id]; ok {
		e.mu.Unlock()
		return nil, engine.Reject("combat %q already exists", id)
	}
	h := e.host(record{
		Name:      spec.Name,
		Seed:      seed,
		Catalog:   catalog,
		Cell:      spec.Cell,
		Obstacles: spec.Obstacles,
	})
	e.combats[id] = h
	h.mu.Lock()
	e.mu.Unlock()
	defer h.mu.Unlock()

	c, err := combat.New(spec.Combatants, e.options(h, id, e.newRNG(seed), combat.WithEnvironment(spec.Environment))...)
	if err != nil {
		e.forget(id)
		return nil, err
	}
	h.attach(c)

	if err := c.Start(ctx); err != nil {
		e.forget(id)
		return nil, err
	}
	e.logger.Info("combat created", "combat", id, "name", spec.Name, "combatants", len(spec.Combatants), "seed", seed)

	res, err := e.commit(ctx, h)
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

func (e *Engine) options(h *hosted, id string, rng engine.RNG, extra ...combat.Option) []combat.Option {
	tracker := fog.New(fog.NewGrid(h.record.Cell, h.record.Obstacles...),
		fog.WithRNG(rng), fog.WithTTL(e.cfg.LOSTTL), fog.WithLogger(e.logger))
	return append([]combat.Option{
		combat.WithID(id),
		combat.WithRNG(rng),
		combat.WithLogger(e.logger),
		combat.WithClock(e.now),
		combat.WithCatalog(h.record.Catalog),
		combat.WithFog(tracker),
		combat.WithCritical(e.cfg.CritChance, e.cfg.CritMultiplier),
		combat.WithCapacity(e.cfg.HistoryCapacity, e.cfg.LogCapacity),
	}, extra...)
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.combats, id)
	e.mu.Unlock()
}

func (h *hosted) collect(evt engine.Event) { h.events = append(h.events, evt) }

// lock finds a hosted combat and holds its mutex until the returned func runs.
func (e *Engine) lock(id string) (*hosted, func(), error) {
	e.mu.Lock()
	h, ok := e.combats[id]
	e.mu.Unlock()
	if !ok {
		return nil, nil, engine.NotFound("combat", id)
	}
	h.mu.Lock()
	if h.combat == nil {
		// creation failed while we waited
		h.mu.Unlock()
		return nil, nil, engine.NotFound("combat", id)
	}
	return h, h.mu.Unlock, nil
}

// commit saves the combat and drains the events gathered since the last call.
func (e *Engine) commit(ctx context.Context, h *hosted) (*Result, error) {
	res := &Result{Events: h.events, Snapshot: h.combat.Snapshot()}
	h.events = nil
	if e.repo == nil {
		return res, nil
	}
	rec := h.record
	rec.Snapshot = res.Snapshot
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode combat %s: %w", res.Snapshot.ID, err)
	}
	if err := e.repo.Save(ctx, res.Snapshot.ID, data); err != nil {
		e.logger.Error("failed to save combat", "combat", res.Snapshot.ID, "error", err)
		return nil, fmt.Errorf("save combat %s: %w", res.Snapshot.ID, err)
	}
	return res, nil
}

// SubmitAction resolves req in combat id. A rejected action changes nothing
// and is not saved.
func (e *Engine) SubmitAction(ctx context.Context, id string, req action.Request) (*Result, error) {
	h, unlock, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return e.submit(ctx, h, req)
}

func (e *Engine) submit(ctx context.Context, h *hosted, req action.Request) (*Result, error) {
	before := h.combat.Snapshot()
	out, err := h.combat.Submit(ctx, req)
	if err != nil {
		h.events = nil
		return nil, err
	}
	h.remember(before)
	res, err := e.commit(ctx, h)
	if err != nil {
		return nil, err
	}
	res.Outcome = out
	return res, nil
}

func (e *Engine) Pause(ctx context.Context, id string) (*Result, error) {
	return e.Mutate(ctx, id, func(c *combat.Combat) error { return c.Pause(ctx) })
}

func (e *Engine) Resume(ctx context.Context, id string) (*Result, error) {
	return e.Mutate(ctx, id, func(c *combat.Combat) error { return c.Resume(ctx) })
}

func (e *Engine) End(ctx context.Context, id, reason string) (*Result, error) {
	return e.Mutate(ctx, id, func(c *combat.Combat) error { return c.End(ctx, reason) })
}

// Delay moves the current combatant to the end of the order.
func (e *Engine) Delay(ctx context.Context, id, combatantID string) (*Result, error) {
	return e.Mutate(ctx, id, func(c *combat.Combat) error { return c.Delay(ctx, combatantID) })
}

// Ready ends combatantID's turn with req held back until trigger fires.
func (e *Engine) Ready(ctx context.Context, id, combatantID string, trigger engine.ReadyTrigger, watchID string, req action.Request) (*Result, error) {
	return e.Mutate(ctx, id, func(c *combat.Combat) error {
		return c.Ready(ctx, combatantID, trigger, watchID, req)
	})
}

// Undo rolls combat id back to where it stood before its last successful
// mutation. Subscriptions made through Subscribe carry over.
func (e *Engine) Undo(ctx context.Context, id string) (*Result, error) {
	h, unlock, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if h.undo == nil {
		return nil, engine.Reject("undo is disabled")
	}
	snap, ok := h.undo.Pop()
	if !ok {
		return nil, engine.Reject("nothing to undo in combat %s", id)
	}
	c, err := combat.Restore(snap, e.options(h, id, e.newRNG(h.record.Seed+uint64(snap.Round)))...)
	if err != nil {
		h.undo.Push(snap)
		return nil, err
	}
	h.attach(c)
	h.events = nil
	e.logger.Info("action undone", "combat", id, "phase", snap.Phase, "round", snap.Round, "turn", snap.CurrentTurnID)
	return e.commit(ctx, h)
}

// Mutate runs fn under the combat's lock and saves afterwards, for
// operations the engine does not wrap itself.
func (e *Engine) Mutate(ctx context.Context, id string, fn func(*combat.Combat) error) (*Result, error) {
	h, unlock, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	before := h.combat.Snapshot()
	if err := fn(h.combat); err != nil {
		h.events = nil
		return nil, err
	}
	h.remember(before)
	return e.commit(ctx, h)
}

// View runs a read-only fn under the combat's lock.
func (e *Engine) View(id string, fn func(*combat.Combat) error) error {
	h, unlock, err := e.lock(id)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(h.combat)
}

func (e *Engine) Snapshot(id string) (*engine.Snapshot, error) {
	var snap *engine.Snapshot
	err := e.View(id, func(c *combat.Combat) error {
		snap = c.Snapshot()
		return nil
	})
	return snap, err
}

// Subscribe forwards every event of combat id to fn.
func (e *Engine) Subscribe(id string, fn engine.Handler) (unsubscribe func(), err error) {
	h, unlock, err := e.lock(id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.bus.Subscribe(fn), nil
}

// IDs lists the hosted combats.
func (e *Engine) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return engine.SortedIDs(e.combats)
}

// Load resumes combat id from the repository. A combat already hosted is
// returned as is.
func (e *Engine) Load(ctx context.Context, id string) (*engine.Snapshot, error) {
	if snap, err := e.Snapshot(id); err == nil {
		return snap, nil
	}
	if e.repo == nil {
		return nil, fmt.Errorf("no repository configured: %w", engine.NotFound("combat", id))
	}
	data, err := e.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode combat %s: %w", id, err)
	}
	if rec.Snapshot == nil {
		return nil, engine.NotFound("snapshot", id)
	}
	if rec.Catalog == nil {
		rec.Catalog = action.NewCatalog()
	}
	rec.Catalog.Normalize()

	h := e.host(rec)
	rng := e.newRNG(rec.Seed + uint64(rec.Snapshot.Round))
	c, err := combat.Restore(rec.Snapshot, e.options(h, rec.Snapshot.ID, rng)...)
	if err != nil {
		return nil, err
	}
	h.attach(c)

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.combats[id]; ok {
		return existing.combat.Snapshot(), nil
	}
	e.combats[id] = h
	e.logger.Info("combat loaded", "combat", id, "phase", rec.Snapshot.Phase, "round", rec.Snapshot.Round)
	return c.Snapshot(), nil
}
