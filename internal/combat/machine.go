// Package combat runs one encounter: the phase machine that gates actions,
// and the Combat type that wires the turn queue, action resolver, effect
// pipeline and fog tracker around a single CombatState.
package combat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/looplab/fsm"

	"github.com/suderio/skirmish/internal/action"
	"github.com/suderio/skirmish/internal/engine"
)

// Publisher receives the events the machine emits.
type Publisher interface {
	Publish(engine.Event)
}

// Phase change events, named after the edge they take.
const (
	eventInitialize = "initialize"
	eventActivate   = "activate"
	eventPause      = "pause"
	eventResume     = "resume"
	eventConclude   = "conclude"
	eventArchive    = "archive"
)

var edges = fsm.Events{
	{Name: eventInitialize, Src: []string{string(engine.PhaseNotStarted)}, Dst: string(engine.PhaseInitialization)},
	{Name: eventActivate, Src: []string{string(engine.PhaseInitialization)}, Dst: string(engine.PhaseActive)},
	{Name: eventPause, Src: []string{string(engine.PhaseActive)}, Dst: string(engine.PhasePaused)},
	{Name: eventResume, Src: []string{string(engine.PhasePaused)}, Dst: string(engine.PhaseActive)},
	{Name: eventConclude, Src: []string{string(engine.PhaseActive)}, Dst: string(engine.PhasePostCombat)},
	{Name: eventArchive, Src: []string{string(engine.PhasePostCombat)}, Dst: string(engine.PhaseEnded)},
}

// edge finds the event leading from one phase to another.
func edge(from, to engine.Phase) (string, bool) {
	for _, e := range edges {
		if e.Dst == string(to) && slices.Contains(e.Src, string(from)) {
			return e.Name, true
		}
	}
	return "", false
}

// Machine is the phase state machine of one combat. The phase itself lives
// on the CombatState so snapshots carry it.
type Machine struct {
	fsm    *fsm.FSM
	state  *engine.CombatState
	pub    Publisher
	now    func() time.Time
	logger *slog.Logger
}

// NewMachine starts from whatever phase state already holds, so a restored
// combat resumes where it was saved.
func NewMachine(state *engine.CombatState, pub Publisher, now func() time.Time, logger *slog.Logger) *Machine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{state: state, pub: pub, now: now, logger: logger}
	m.fsm = fsm.NewFSM(string(state.Phase), edges, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) { m.entered(engine.Phase(e.Src), engine.Phase(e.Dst)) },
	})
	return m
}

func (m *Machine) entered(from, to engine.Phase) {
	m.state.Phase = to
	m.state.UpdatedAt = m.now()
	m.state.History.Push(engine.Transition{From: from, To: to, Round: m.state.Round, At: m.state.UpdatedAt})
	m.logger.Info("combat phase changed", "from", from, "to", to, "round", m.state.Round)
	m.publish(&engine.StateChangedEvent{From: from, To: to, Round: m.state.Round})
}

func (m *Machine) publish(evt engine.Event) {
	if m.pub != nil {
		m.pub.Publish(evt)
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() engine.Phase { return m.state.Phase }

// Transition moves to the target phase. Edges outside the table fail with
// engine.ErrInvalidTransition and change nothing.
func (m *Machine) Transition(ctx context.Context, to engine.Phase) error {
	from := m.state.Phase
	name, ok := edge(from, to)
	if !ok || !m.fsm.Can(name) {
		return fmt.Errorf("%s -> %s: %w", from, to, engine.ErrInvalidTransition)
	}
	if err := m.fsm.Event(ctx, name); err != nil {
		return fmt.Errorf("%s -> %s: %w", from, to, err)
	}
	return nil
}

func (m *Machine) Pause(ctx context.Context) error {
	return m.Transition(ctx, engine.PhasePaused)
}

func (m *Machine) Resume(ctx context.Context) error {
	return m.Transition(ctx, engine.PhaseActive)
}

// AdvanceRound is the turn queue's round hook.
func (m *Machine) AdvanceRound() {
	m.state.Round++
	m.publish(&engine.RoundAdvancedEvent{Round: m.state.Round})
}

// CanPerformAction allows every kind of action while active and none
// otherwise.
func (m *Machine) CanPerformAction(action.Kind) bool {
	return m.state.Phase == engine.PhaseActive
}

// CheckVictory ends an active combat once either the player or the enemy
// side has nobody standing. The victor is whichever side still has someone;
// an empty victor is a draw.
func (m *Machine) CheckVictory(ctx context.Context) (bool, error) {
	if m.state.Phase != engine.PhaseActive {
		return false, nil
	}
	living := m.state.Living()
	players, enemies := living[engine.FactionPlayer], living[engine.FactionEnemy]
	if players > 0 && enemies > 0 {
		return false, nil
	}

	var victor engine.Faction
	reason := "draw"
	switch {
	case players > 0:
		victor, reason = engine.FactionPlayer, "victory"
	case enemies > 0:
		victor, reason = engine.FactionEnemy, "victory"
	}
	m.state.Victor = victor
	if err := m.Transition(ctx, engine.PhasePostCombat); err != nil {
		return false, err
	}
	m.publish(&engine.CombatEndedEvent{Victor: victor, Round: m.state.Round, Reason: reason})
	return true, nil
}

// History returns the recorded transitions, oldest first.
func (m *Machine) History() []engine.Transition {
	return m.state.History.Items()
}
