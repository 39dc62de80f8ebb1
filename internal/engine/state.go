package engine

import (
	"fmt"
	"sort"
	"time"
)

// Phase is the stage of the combat state machine.
type Phase string

const (
	PhaseNotStarted     Phase = "not_started"
	PhaseInitialization Phase = "initialization"
	PhaseActive         Phase = "active"
	PhasePaused         Phase = "paused"
	PhasePostCombat     Phase = "post_combat"
	PhaseEnded          Phase = "ended"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseNotStarted, PhaseInitialization, PhaseActive, PhasePaused, PhasePostCombat, PhaseEnded:
		return true
	}
	return false
}

// TurnSlot is one entry of the initiative order.
type TurnSlot struct {
	ID         string  `json:"id"`
	Initiative float64 `json:"initiative"`
	Seq        int     `json:"seq"` // registration order, breaks initiative ties
}

// TurnState is the initiative order as stored in CombatState. The turn queue
// operates on it in place.
type TurnState struct {
	Order   []TurnSlot `json:"order"`
	Index   int        `json:"index"`
	Vacated bool       `json:"vacated,omitempty"` // the current slot's owner was removed
	Wrap    bool       `json:"wrap,omitempty"`    // the next advance crosses a round boundary
	NextSeq int        `json:"next_seq"`
}

// Current returns the id at the current index, or "" on an empty order.
func (t *TurnState) Current() string {
	if len(t.Order) == 0 || t.Index < 0 || t.Index >= len(t.Order) {
		return ""
	}
	return t.Order[t.Index].ID
}

// IDs lists the order as combatant ids.
func (t *TurnState) IDs() []string {
	ids := make([]string, len(t.Order))
	for i, s := range t.Order {
		ids[i] = s.ID
	}
	return ids
}

// Transition records one phase change.
type Transition struct {
	From  Phase     `json:"from"`
	To    Phase     `json:"to"`
	Round int       `json:"round"`
	At    time.Time `json:"at"`
}

// LogEntry is a human-readable line derived from an event.
type LogEntry struct {
	Round   int       `json:"round"`
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// CombatState is the authoritative record of one encounter.
type CombatState struct {
	ID          string                `json:"id"`
	Phase       Phase                 `json:"phase"`
	Round       int                   `json:"round"`
	Turn        TurnState             `json:"turn"`
	Combatants  map[string]*Combatant `json:"combatants"`
	Roster      []string              `json:"roster"` // registration order
	Environment map[string]string     `json:"environment,omitempty"`
	Victor      Faction               `json:"victor,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`

	History *Ring[Transition] `json:"-"`
	Log     *Ring[LogEntry]   `json:"-"`
}

// NewCombatState creates an empty state in the not_started phase.
func NewCombatState(id string, historyCap, logCap int, now time.Time) *CombatState {
	return &CombatState{
		ID:          id,
		Phase:       PhaseNotStarted,
		Round:       1,
		Combatants:  make(map[string]*Combatant),
		Environment: make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
		History:     NewRing[Transition](historyCap),
		Log:         NewRing[LogEntry](logCap),
	}
}

// Add registers c. Re-adding an existing id is rejected.
func (s *CombatState) Add(c *Combatant) error {
	if c == nil || c.ID == "" {
		return Reject("combatant needs an id")
	}
	if _, ok := s.Combatants[c.ID]; ok {
		return Reject("combatant %q already present", c.ID)
	}
	c.Normalize()
	s.Combatants[c.ID] = c
	s.Roster = append(s.Roster, c.ID)
	return nil
}

// Get resolves an id, returning a wrapped ErrNotFound when absent.
func (s *CombatState) Get(id string) (*Combatant, error) {
	c, ok := s.Combatants[id]
	if !ok {
		return nil, NotFound("combatant", id)
	}
	return c, nil
}

// Ordered returns the combatants in registration order.
func (s *CombatState) Ordered() []*Combatant {
	out := make([]*Combatant, 0, len(s.Roster))
	for _, id := range s.Roster {
		if c, ok := s.Combatants[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Living counts living combatants per faction.
func (s *CombatState) Living() map[Faction]int {
	out := make(map[Faction]int)
	for _, c := range s.Combatants {
		if c.Alive() {
			out[c.Faction]++
		}
	}
	return out
}

// Record appends a log line for the current round.
func (s *CombatState) Record(evt Event, now time.Time) {
	s.UpdatedAt = now
	if s.Log == nil {
		return
	}
	s.Log.Push(LogEntry{Round: s.Round, Type: evt.Type(), Message: evt.Message(), At: now})
}

// CheckInvariants reports the first corruption found.
func (s *CombatState) CheckInvariants() error {
	for id, c := range s.Combatants {
		if c.HP < 0 || c.HP > c.MaxHP {
			return &InvariantError{Detail: fmt.Sprintf("combatant %s hp %d outside [0,%d]", id, c.HP, c.MaxHP)}
		}
		seen := make(map[string]bool)
		for _, e := range c.Effects {
			if seen[e.EffectID] {
				return &InvariantError{Detail: fmt.Sprintf("combatant %s holds effect %s twice", id, e.EffectID)}
			}
			seen[e.EffectID] = true
			if e.Stacks < 1 || e.Stacks > e.MaxStacks {
				return &InvariantError{Detail: fmt.Sprintf("effect %s on %s has %d stacks", e.EffectID, id, e.Stacks)}
			}
		}
	}
	n := len(s.Turn.Order)
	if n > 0 && (s.Turn.Index < 0 || s.Turn.Index >= n) {
		return &InvariantError{Detail: fmt.Sprintf("turn index %d out of range %d", s.Turn.Index, n)}
	}
	for _, slot := range s.Turn.Order {
		c, ok := s.Combatants[slot.ID]
		if !ok {
			return &InvariantError{Detail: fmt.Sprintf("turn order references unknown %s", slot.ID)}
		}
		if !c.Alive() {
			return &InvariantError{Detail: fmt.Sprintf("turn order holds dead combatant %s", slot.ID)}
		}
	}
	if !s.Phase.Valid() {
		return &InvariantError{Detail: fmt.Sprintf("unknown phase %q", s.Phase)}
	}
	return nil
}

// --- Snapshot ---

// Snapshot is the serializable view of a CombatState. Restoring from it
// yields an equivalent state.
type Snapshot struct {
	ID            string            `json:"id"`
	Phase         Phase             `json:"phase"`
	Round         int               `json:"round"`
	CurrentTurnID string            `json:"current_turn_id"`
	TurnOrder     []string          `json:"turn_order"`
	Turn          TurnState         `json:"turn"`
	Combatants    []*Combatant      `json:"combatants"`
	Environment   map[string]string `json:"environment,omitempty"`
	Victor        Faction           `json:"victor,omitempty"`
	Log           []LogEntry        `json:"log"`
	History       []Transition      `json:"history"`
	LogCapacity   int               `json:"log_capacity"`
	HistoryCap    int               `json:"history_capacity"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Snapshot deep-copies the state.
func (s *CombatState) Snapshot() *Snapshot {
	snap := &Snapshot{
		ID:            s.ID,
		Phase:         s.Phase,
		Round:         s.Round,
		CurrentTurnID: s.Turn.Current(),
		TurnOrder:     s.Turn.IDs(),
		Turn: TurnState{
			Order:   append([]TurnSlot(nil), s.Turn.Order...),
			Index:   s.Turn.Index,
			Vacated: s.Turn.Vacated,
			Wrap:    s.Turn.Wrap,
			NextSeq: s.Turn.NextSeq,
		},
		Environment: make(map[string]string, len(s.Environment)),
		Victor:      s.Victor,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	for _, c := range s.Ordered() {
		snap.Combatants = append(snap.Combatants, c.Clone())
	}
	for k, v := range s.Environment {
		snap.Environment[k] = v
	}
	if s.Log != nil {
		snap.Log = s.Log.Items()
		snap.LogCapacity = s.Log.Cap()
	}
	if s.History != nil {
		snap.History = s.History.Items()
		snap.HistoryCap = s.History.Cap()
	}
	return snap
}

// StateFromSnapshot rebuilds a CombatState from a snapshot.
func StateFromSnapshot(snap *Snapshot) (*CombatState, error) {
	if snap == nil || snap.ID == "" {
		return nil, fmt.Errorf("snapshot without id: %w", ErrNotFound)
	}
	if !snap.Phase.Valid() {
		return nil, &InvariantError{Detail: fmt.Sprintf("snapshot phase %q", snap.Phase)}
	}
	s := NewCombatState(snap.ID, snap.HistoryCap, snap.LogCapacity, snap.CreatedAt)
	s.Phase = snap.Phase
	s.Round = snap.Round
	s.Victor = snap.Victor
	s.UpdatedAt = snap.UpdatedAt
	s.Turn = TurnState{
		Order:   append([]TurnSlot(nil), snap.Turn.Order...),
		Index:   snap.Turn.Index,
		Vacated: snap.Turn.Vacated,
		Wrap:    snap.Turn.Wrap,
		NextSeq: snap.Turn.NextSeq,
	}
	for k, v := range snap.Environment {
		s.Environment[k] = v
	}
	for _, c := range snap.Combatants {
		cc := c.Clone()
		cc.Normalize()
		s.Combatants[cc.ID] = cc
		s.Roster = append(s.Roster, cc.ID)
	}
	for _, e := range snap.Log {
		s.Log.Push(e)
	}
	for _, t := range snap.History {
		s.History.Push(t)
	}
	if err := s.CheckInvariants(); err != nil {
		return nil, err
	}
	return s, nil
}

// SortedIDs returns map keys in lexical order, for stable output.
func SortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
