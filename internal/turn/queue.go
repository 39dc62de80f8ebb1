// Package turn keeps the initiative order of an encounter. The queue works
// directly on the TurnState and Round of the owning CombatState, so the order
// seen here is always the order that gets persisted.
package turn

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/suderio/skirmish/internal/engine"
)

var (
	// ErrNotCurrent rejects a delay from anyone but the current combatant.
	ErrNotCurrent = errors.New("not the current combatant")
	// ErrQueued rejects adding a combatant twice.
	ErrQueued = errors.New("already in the order")
)

// Listener observes turn boundaries. TurnEnded fires for the combatant whose
// turn finishes, TurnStarted for the one whose turn begins. Listeners must
// not mutate the queue.
type Listener interface {
	TurnEnded(id string) error
	TurnStarted(id string) error
}

// Funcs adapts plain functions to Listener. Nil fields are skipped.
type Funcs struct {
	Ended   func(id string) error
	Started func(id string) error
}

func (f Funcs) TurnEnded(id string) error {
	if f.Ended == nil {
		return nil
	}
	return f.Ended(id)
}

func (f Funcs) TurnStarted(id string) error {
	if f.Started == nil {
		return nil
	}
	return f.Started(id)
}

type Option func(*Queue)

func WithLogger(l *slog.Logger) Option { return func(q *Queue) { q.logger = l } }

// WithRoundHook replaces the default round increment run on every wrap.
func WithRoundHook(fn func()) Option { return func(q *Queue) { q.onRound = fn } }

type Queue struct {
	state     *engine.CombatState
	rng       engine.RNG
	logger    *slog.Logger
	onRound   func()
	listeners []subscription
	nextSub   int
}

type subscription struct {
	id int
	l  Listener
}

// New binds a queue to state. Rolls come from rng.
func New(state *engine.CombatState, rng engine.RNG, opts ...Option) *Queue {
	q := &Queue{
		state:  state,
		rng:    rng,
		logger: slog.Default(),
	}
	q.onRound = func() { q.state.Round++ }
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Subscribe registers l and returns its removal function.
func (q *Queue) Subscribe(l Listener) (unsubscribe func()) {
	id := q.nextSub
	q.nextSub++
	q.listeners = append(q.listeners, subscription{id: id, l: l})
	return func() {
		q.listeners = slices.DeleteFunc(q.listeners, func(s subscription) bool { return s.id == id })
	}
}

// Score rolls initiative for c: dexterity, or speed when dexterity is unset,
// plus a d20. A combatant-supplied override skips the roll.
func (q *Queue) Score(c *engine.Combatant) float64 {
	if c.Initiative != nil {
		return *c.Initiative
	}
	base := c.Stat("dexterity")
	if base == 0 {
		base = c.Stat("speed")
	}
	return base + float64(engine.D20(q.rng))
}

// Initialize replaces the order with the living combatants, sorted by score,
// and starts round one.
func (q *Queue) Initialize(combatants []*engine.Combatant) {
	ts := &q.state.Turn
	ts.Order = ts.Order[:0]
	ts.NextSeq = 0
	for _, c := range combatants {
		if c == nil || !c.Alive() {
			continue
		}
		ts.Order = append(ts.Order, engine.TurnSlot{ID: c.ID, Initiative: q.Score(c), Seq: ts.NextSeq})
		ts.NextSeq++
	}
	sortSlots(ts.Order)
	ts.Index = 0
	ts.Vacated = false
	ts.Wrap = false
	q.state.Round = 1
}

// Add rolls for c and inserts it in order. On an empty queue it becomes
// current; otherwise the current combatant keeps its turn.
func (q *Queue) Add(c *engine.Combatant) error {
	ts := &q.state.Turn
	if q.indexOf(c.ID) >= 0 {
		return fmt.Errorf("%s: %w", c.ID, ErrQueued)
	}
	empty := len(ts.Order) == 0
	current := ts.Current()

	ts.Order = append(ts.Order, engine.TurnSlot{ID: c.ID, Initiative: q.Score(c), Seq: ts.NextSeq})
	ts.NextSeq++
	sortSlots(ts.Order)

	if empty {
		ts.Index = 0
		ts.Vacated = false
		ts.Wrap = false
		return nil
	}
	ts.Index = q.indexOf(current)
	return nil
}

// Remove drops id. When id held the turn, the next Advance moves to the entry
// that followed it.
func (q *Queue) Remove(id string) bool {
	ts := &q.state.Turn
	idx := q.indexOf(id)
	if idx < 0 {
		return false
	}
	ts.Order = slices.Delete(ts.Order, idx, idx+1)

	n := len(ts.Order)
	if n == 0 {
		ts.Index = 0
		ts.Vacated = false
		ts.Wrap = false
		return true
	}
	switch {
	case idx < ts.Index:
		ts.Index--
	case idx == ts.Index:
		ts.Vacated = true
		if idx >= n {
			ts.Index = 0
			ts.Wrap = true
		}
	}
	return true
}

// Advance ends the current turn and starts the next one, returning both ids.
// Wrapping to the top of the order counts a new round. An empty queue
// returns two empty ids.
func (q *Queue) Advance() (prev, next string) {
	ts := &q.state.Turn
	n := len(ts.Order)
	if n == 0 {
		return "", ""
	}

	if ts.Vacated {
		ts.Vacated = false
		if ts.Wrap {
			ts.Wrap = false
			q.onRound()
		}
	} else {
		prev = ts.Order[ts.Index].ID
		q.notify(prev, false)
		ts.Index = (ts.Index + 1) % n
		if ts.Index == 0 {
			q.onRound()
		}
	}

	next = ts.Order[ts.Index].ID
	q.notify(next, true)
	return prev, next
}

// Delay moves the current combatant to the end of the order without counting
// a round, and starts the turn of whoever followed it. A combatant already
// last stays last and the turn wraps to the top of the order, still without a
// new round.
func (q *Queue) Delay(id string) (next string, err error) {
	ts := &q.state.Turn
	if ts.Vacated || ts.Current() != id {
		return "", fmt.Errorf("%s: %w", id, ErrNotCurrent)
	}
	n := len(ts.Order)
	if ts.Index == n-1 {
		ts.Index = 0
	} else {
		slot := ts.Order[ts.Index]
		slot.Initiative = ts.Order[n-1].Initiative
		slot.Seq = ts.NextSeq
		ts.NextSeq++
		ts.Order = append(slices.Delete(ts.Order, ts.Index, ts.Index+1), slot)
	}

	next = ts.Order[ts.Index].ID
	q.notify(next, true)
	return next, nil
}

// RecomputeInitiative stores a new score for id and re-sorts, keeping the
// same combatant current.
func (q *Queue) RecomputeInitiative(id string, value float64) error {
	ts := &q.state.Turn
	idx := q.indexOf(id)
	if idx < 0 {
		return engine.NotFound("turn slot", id)
	}
	current := ts.Current()
	ts.Order[idx].Initiative = value
	sortSlots(ts.Order)
	ts.Index = q.indexOf(current)
	return nil
}

// IsRoundComplete is true while the first entry of the order holds the turn.
func (q *Queue) IsRoundComplete() bool {
	return q.state.Turn.Index == 0
}

// Current returns the id holding the turn.
func (q *Queue) Current() string { return q.state.Turn.Current() }

// Order returns the ids in turn order.
func (q *Queue) Order() []string { return q.state.Turn.IDs() }

func (q *Queue) Len() int { return len(q.state.Turn.Order) }

// Contains reports whether id is queued.
func (q *Queue) Contains(id string) bool { return q.indexOf(id) >= 0 }

// Initiative returns the stored score for id.
func (q *Queue) Initiative(id string) (float64, bool) {
	if i := q.indexOf(id); i >= 0 {
		return q.state.Turn.Order[i].Initiative, true
	}
	return 0, false
}

func (q *Queue) indexOf(id string) int {
	return slices.IndexFunc(q.state.Turn.Order, func(s engine.TurnSlot) bool { return s.ID == id })
}

func (q *Queue) notify(id string, started bool) {
	for _, sub := range slices.Clone(q.listeners) {
		q.call(sub.l, id, started)
	}
}

func (q *Queue) call(l Listener, id string, started bool) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("turn listener panicked", "combatant", id, "started", started, "panic", fmt.Sprint(r))
		}
	}()
	var err error
	if started {
		err = l.TurnStarted(id)
	} else {
		err = l.TurnEnded(id)
	}
	if err != nil {
		q.logger.Warn("turn listener failed", "combatant", id, "started", started, "error", err)
	}
}

func sortSlots(order []engine.TurnSlot) {
	slices.SortStableFunc(order, func(a, b engine.TurnSlot) int {
		if c := cmp.Compare(b.Initiative, a.Initiative); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}
