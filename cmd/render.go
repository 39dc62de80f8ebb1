package cmd

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/suderio/skirmish/internal/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F25D94"))

	stateBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1)

	logBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1)

	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD75F"))
	deadStyle    = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("#666666"))

	factionStyles = map[engine.Faction]lipgloss.Style{
		engine.FactionPlayer:  lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF")),
		engine.FactionEnemy:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		engine.FactionNeutral: lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")),
	}
)

// renderSnapshot draws the header, roster and newest log lines of a combat.
func renderSnapshot(snap *engine.Snapshot, logLines int) string {
	header := fmt.Sprintf(" %s | %s | round %d ", snap.ID, snap.Phase, snap.Round)
	if snap.Phase == engine.PhasePostCombat || snap.Phase == engine.PhaseEnded {
		if snap.Victor != "" {
			header += fmt.Sprintf("| %s side wins ", snap.Victor)
		} else {
			header += "| no victor "
		}
	}

	parts := []string{titleStyle.Render(header), stateBoxStyle.Render(renderRoster(snap))}
	if logLines > 0 && len(snap.Log) > 0 {
		entries := snap.Log
		if len(entries) > logLines {
			entries = entries[len(entries)-logLines:]
		}
		parts = append(parts, logBoxStyle.Render(renderLog(entries)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderRoster(snap *engine.Snapshot) string {
	byID := make(map[string]*engine.Combatant, len(snap.Combatants))
	for _, c := range snap.Combatants {
		byID[c.ID] = c
	}
	ids := slices.Clone(snap.TurnOrder)
	// combatants outside the order (dead or not started) go last
	for _, c := range snap.Combatants {
		if !slices.Contains(ids, c.ID) {
			ids = append(ids, c.ID)
		}
	}

	var b strings.Builder
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		marker := "  "
		if id == snap.CurrentTurnID {
			marker = currentStyle.Render("▶ ")
		}
		line := fmt.Sprintf("%-14s %-8s %s", c.Name, c.Faction, hpBar(c.HP, c.MaxHP))
		if res := resources(c); res != "" {
			line += "  " + res
		}
		if len(c.Effects) > 0 {
			var names []string
			for _, e := range c.Effects {
				if e.Stacks > 1 {
					names = append(names, fmt.Sprintf("%s x%d", e.EffectID, e.Stacks))
				} else {
					names = append(names, e.EffectID)
				}
			}
			line += infoStyle.Render(" [" + strings.Join(names, ", ") + "]")
		}
		style, ok := factionStyles[c.Faction]
		if !ok {
			style = lipgloss.NewStyle()
		}
		if !c.Alive() {
			style = deadStyle
		}
		b.WriteString(marker + style.Render(line) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func hpBar(hp, maxHP int) string {
	const width = 10
	filled := 0
	if maxHP > 0 {
		filled = hp * width / maxHP
	}
	if hp > 0 && filled == 0 {
		filled = 1
	}
	return fmt.Sprintf("%s%s %3d/%-3d", strings.Repeat("█", filled), strings.Repeat("░", width-filled), hp, maxHP)
}

func resources(c *engine.Combatant) string {
	names := make([]string, 0, len(c.Resources))
	for name := range c.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	var parts []string
	for _, name := range names {
		r := c.Resources[name]
		parts = append(parts, fmt.Sprintf("%s %d/%d", name, r.Current, r.Max))
	}
	return strings.Join(parts, " ")
}

func renderLog(entries []engine.LogEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = infoStyle.Render(fmt.Sprintf("[r%d]", e.Round)) + " " + e.Message
	}
	return strings.Join(lines, "\n")
}

func renderEvent(evt engine.Event) string {
	switch evt.(type) {
	case *engine.CombatEndedEvent, *engine.CombatantDiedEvent:
		return currentStyle.Render(evt.Message())
	case *engine.RoundAdvancedEvent:
		return titleStyle.Render(evt.Message())
	}
	return evt.Message()
}
