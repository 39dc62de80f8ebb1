package effects

import "github.com/suderio/skirmish/internal/engine"

// modified computes the value a stat should hold when the deltas of inst are in
// force on top of base, scaled by the current stack count.
func modified(base float64, stat string, inst *engine.EffectInstance) float64 {
	scale := float64(inst.Scale())
	v := base
	for _, d := range inst.StatDeltas {
		if d.Stat != stat {
			continue
		}
		switch d.Mode {
		case engine.DeltaFlat:
			v += d.Amount * scale
		case engine.DeltaPercentage:
			v *= 1 + d.Amount*scale/100
		}
	}
	return v
}

func touched(inst *engine.EffectInstance) []string {
	var stats []string
	seen := make(map[string]bool)
	for _, d := range inst.StatDeltas {
		if !seen[d.Stat] {
			seen[d.Stat] = true
			stats = append(stats, d.Stat)
		}
	}
	return stats
}

// applyDeltas snapshots every touched stat and writes before+applied.
func applyDeltas(c *engine.Combatant, inst *engine.EffectInstance) {
	stats := touched(inst)
	if len(stats) == 0 {
		return
	}
	inst.Before = make(map[string]float64, len(stats))
	inst.Applied = make(map[string]float64, len(stats))
	for _, s := range stats {
		before := c.Stat(s)
		applied := modified(before, s, inst) - before
		inst.Before[s] = before
		inst.Applied[s] = applied
		c.SetStat(s, before+applied)
	}
}

// reapplyDeltas moves each stat from the old realized change to the one
// implied by the new stack count, leaving other modifiers untouched.
func reapplyDeltas(c *engine.Combatant, inst *engine.EffectInstance) {
	for s, before := range inst.Before {
		old := inst.Applied[s]
		applied := modified(before, s, inst) - before
		cur := c.Stat(s)
		if cur == before+old {
			c.SetStat(s, before+applied)
		} else {
			c.SetStat(s, cur-old+applied)
		}
		inst.Applied[s] = applied
	}
}

// revertDeltas restores the snapshot when nothing else touched the stat since
// the effect last wrote it; otherwise it backs out the recorded change only.
func revertDeltas(c *engine.Combatant, inst *engine.EffectInstance) {
	for s, before := range inst.Before {
		applied := inst.Applied[s]
		cur := c.Stat(s)
		if cur == before+applied {
			c.SetStat(s, before)
		} else {
			c.SetStat(s, cur-applied)
		}
	}
	inst.Applied = nil
}
