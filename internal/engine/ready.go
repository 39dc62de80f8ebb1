package engine

// ReadyTrigger is what another combatant must do to set off a readied action.
type ReadyTrigger string

const (
	ReadyOnMove   ReadyTrigger = "moves"
	ReadyOnAttack ReadyTrigger = "attacks" // attack or skill
	ReadyOnAct    ReadyTrigger = "acts"    // anything but pass
)

func (t ReadyTrigger) Valid() bool {
	switch t {
	case ReadyOnMove, ReadyOnAttack, ReadyOnAct:
		return true
	}
	return false
}

// Fires reports whether an action of kind sets the trigger off.
func (t ReadyTrigger) Fires(kind string) bool {
	switch t {
	case ReadyOnMove:
		return kind == "move"
	case ReadyOnAttack:
		return kind == "attack" || kind == "skill"
	case ReadyOnAct:
		return kind != "pass" && kind != "ready"
	}
	return false
}

// ReadiedAction is an attack, skill or item held until a watched combatant
// triggers it. An empty WatchID watches every enemy. It lapses when its owner's
// next turn starts.
type ReadiedAction struct {
	Trigger   ReadyTrigger `json:"trigger"`
	WatchID   string       `json:"watch_id,omitempty"`
	Kind      string       `json:"kind"`
	SkillID   string       `json:"skill_id,omitempty"`
	ItemID    string       `json:"item_id,omitempty"`
	TargetIDs []string     `json:"target_ids,omitempty"`
	Round     int          `json:"round"`
}
