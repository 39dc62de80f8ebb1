package engine

import (
	"fmt"
	"strings"
)

type EventType string

const (
	EventStateChanged   EventType = "combat.state_changed"
	EventActionExecuted EventType = "action_executed"
	EventEffectApplied  EventType = "effect_applied"
	EventEffectRemoved  EventType = "effect_removed"
	EventTurnAdvanced   EventType = "turn_advanced"
	EventRoundAdvanced  EventType = "round_advanced"
	EventCombatEnded    EventType = "combat_ended"
	EventCombatantDied  EventType = "combatant_died"
)

// Event is a structured notification emitted toward the outer layers.
type Event interface {
	Type() EventType
	Message() string
}

// StateChangedEvent marks a phase transition.
type StateChangedEvent struct {
	From  Phase `json:"from"`
	To    Phase `json:"to"`
	Round int   `json:"round"`
}

func (e *StateChangedEvent) Type() EventType { return EventStateChanged }
func (e *StateChangedEvent) Message() string {
	return fmt.Sprintf("Combat moved from %s to %s (round %d)", e.From, e.To, e.Round)
}

// ActionExecutedEvent summarizes a resolved action.
type ActionExecutedEvent struct {
	Kind      string   `json:"kind"`
	SourceID  string   `json:"source_id"`
	TargetIDs []string `json:"target_ids,omitempty"`
	Detail    string   `json:"detail,omitempty"` // skill or item id, or ready trigger
	Damage    int      `json:"damage,omitempty"`
	Healing   int      `json:"healing,omitempty"`
}

func (e *ActionExecutedEvent) Type() EventType { return EventActionExecuted }
func (e *ActionExecutedEvent) Message() string {
	var b strings.Builder
	if e.Kind == "ready" {
		fmt.Fprintf(&b, "%s readies an action", e.SourceID)
	} else {
		fmt.Fprintf(&b, "%s used %s", e.SourceID, e.Kind)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	if len(e.TargetIDs) > 0 {
		fmt.Fprintf(&b, " on %s", strings.Join(e.TargetIDs, ", "))
	}
	if e.Damage > 0 {
		fmt.Fprintf(&b, " dealing %d damage", e.Damage)
	}
	if e.Healing > 0 {
		fmt.Fprintf(&b, " healing %d", e.Healing)
	}
	return b.String()
}

// EffectAppliedEvent fires on a new application and on every stack or refresh.
type EffectAppliedEvent struct {
	TargetID string `json:"target_id"`
	EffectID string `json:"effect_id"`
	SourceID string `json:"source_id,omitempty"`
	Stacks   int    `json:"stacks"`
	Duration int    `json:"duration"`
}

func (e *EffectAppliedEvent) Type() EventType { return EventEffectApplied }
func (e *EffectAppliedEvent) Message() string {
	if e.Stacks > 1 {
		return fmt.Sprintf("%s is affected by %s (x%d)", e.TargetID, e.EffectID, e.Stacks)
	}
	return fmt.Sprintf("%s is affected by %s", e.TargetID, e.EffectID)
}

// Removal reasons carried by EffectRemovedEvent.
const (
	ReasonExpired   = "expired"
	ReasonRemoved   = "removed"
	ReasonDispelled = "dispelled"
	ReasonDeath     = "death"
	ReasonCleared   = "cleared"
)

type EffectRemovedEvent struct {
	TargetID string `json:"target_id"`
	EffectID string `json:"effect_id"`
	Reason   string `json:"reason"`
}

func (e *EffectRemovedEvent) Type() EventType { return EventEffectRemoved }
func (e *EffectRemovedEvent) Message() string {
	return fmt.Sprintf("%s is no longer affected by %s (%s)", e.TargetID, e.EffectID, e.Reason)
}

type TurnAdvancedEvent struct {
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next"`
	Round    int    `json:"round"`
}

func (e *TurnAdvancedEvent) Type() EventType { return EventTurnAdvanced }
func (e *TurnAdvancedEvent) Message() string {
	return fmt.Sprintf("It is now %s's turn (round %d)", e.Next, e.Round)
}

type RoundAdvancedEvent struct {
	Round int `json:"round"`
}

func (e *RoundAdvancedEvent) Type() EventType { return EventRoundAdvanced }
func (e *RoundAdvancedEvent) Message() string { return fmt.Sprintf("Round %d begins", e.Round) }

// CombatEndedEvent carries the victor; empty means a draw.
type CombatEndedEvent struct {
	Victor Faction `json:"victor,omitempty"`
	Round  int     `json:"round"`
	Reason string  `json:"reason,omitempty"`
}

func (e *CombatEndedEvent) Type() EventType { return EventCombatEnded }
func (e *CombatEndedEvent) Message() string {
	if e.Victor == "" {
		return fmt.Sprintf("Combat ended without a victor after round %d", e.Round)
	}
	return fmt.Sprintf("Combat ended: %s side wins after round %d", e.Victor, e.Round)
}

type CombatantDiedEvent struct {
	ID       string `json:"id"`
	KillerID string `json:"killer_id,omitempty"`
}

func (e *CombatantDiedEvent) Type() EventType { return EventCombatantDied }
func (e *CombatantDiedEvent) Message() string {
	if e.KillerID != "" {
		return fmt.Sprintf("%s was slain by %s", e.ID, e.KillerID)
	}
	return fmt.Sprintf("%s has fallen", e.ID)
}

// NewEvent returns an empty event for t, used by decoders.
func NewEvent(t EventType) (Event, error) {
	switch t {
	case EventStateChanged:
		return &StateChangedEvent{}, nil
	case EventActionExecuted:
		return &ActionExecutedEvent{}, nil
	case EventEffectApplied:
		return &EffectAppliedEvent{}, nil
	case EventEffectRemoved:
		return &EffectRemovedEvent{}, nil
	case EventTurnAdvanced:
		return &TurnAdvancedEvent{}, nil
	case EventRoundAdvanced:
		return &RoundAdvancedEvent{}, nil
	case EventCombatEnded:
		return &CombatEndedEvent{}, nil
	case EventCombatantDied:
		return &CombatantDiedEvent{}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", t)
}
