package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCommand is returned for lines that start with no known keyword.
var ErrUnknownCommand = errors.New("I wasn't able to understand your command")

var usage = map[string]string{
	"attack":   "attack [by: Actor] to: Target [and: Target]*",
	"skill":    "skill <skill> [by: Actor] [to: Target [and: Target]*]",
	"cast":     "cast <skill> [by: Actor] [to: Target [and: Target]*]",
	"use":      "use <item> [by: Actor] [to: Target [and: Target]*]",
	"move":     "move [by: Actor] to: X Y [Z]",
	"pass":     "pass [by: Actor]",
	"wait":     "wait [by: Actor]",
	"delay":    "delay [by: Actor]",
	"ready":    "ready [by: Actor] when: moves|attacks|acts [watch: Target] (attack ...|skill ...|use ...)",
	"undo":     "undo",
	"pause":    "pause",
	"resume":   "resume",
	"end":      `end ["reason"]`,
	"look":     "look [by: Observer] at: Target",
	"perceive": "perceive [by: Observer] at: Target [with: Bonus]",
	"status":   "status",
	"actions":  "actions [by: Actor]",
	"log":      "log",
	"auto":     "auto",
	"help":     "help",
	"quit":     "quit",
	"exit":     "exit",
}

// MapError takes a raw input and a participle error, and returns a human-friendly guidance message.
func MapError(input string, err error) error {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(parts) == 0 {
		return ErrUnknownCommand
	}
	if u, ok := usage[parts[0]]; ok {
		return fmt.Errorf("the command %s must be: %s", parts[0], u)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, parts[0])
}

// Usage lists every command form, one per line.
func Usage() string {
	var b strings.Builder
	for _, k := range []string{"attack", "skill", "use", "move", "pass", "delay", "ready", "pause", "resume", "end", "look", "perceive", "status", "actions", "log", "auto", "undo", "help", "quit"} {
		b.WriteString("  ")
		b.WriteString(usage[k])
		b.WriteByte('\n')
	}
	return b.String()
}
