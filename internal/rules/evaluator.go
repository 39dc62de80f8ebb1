// Package rules evaluates the CEL formulas that gate skills. A formula sees
// the acting combatant as `actor`, the candidate target as `target` and the
// current round as `round`, and may call roll("2d6"). Active effects are
// listed by id, so `"burning" in target.effects` tests for one.
package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/suderio/skirmish/internal/engine"
)

// Evaluator compiles formulas once and reuses the programs.
type Evaluator struct {
	env *cel.Env
	rng engine.RNG

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewEvaluator builds the CEL environment. Dice in formulas come from rng.
func NewEvaluator(rng engine.RNG) (*Evaluator, error) {
	ev := &Evaluator{rng: rng, programs: make(map[string]cel.Program)}

	env, err := cel.NewEnv(
		ext.Strings(),
		ext.Lists(),

		cel.Variable("actor", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("target", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("round", cel.IntType),

		cel.Function("roll",
			cel.Overload("roll_string",
				[]*cel.Type{cel.StringType},
				cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					n, err := ev.Roll(val.Value().(string))
					if err != nil {
						return types.NewErr("%s", err.Error())
					}
					return types.Int(n)
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ev.env = env
	return ev, nil
}

// Compile checks a formula without evaluating it. Loaders call it so a
// broken formula fails at load time rather than mid-combat.
func (ev *Evaluator) Compile(formula string) error {
	_, err := ev.program(formula)
	return err
}

// Check evaluates formula and requires a boolean result.
func (ev *Evaluator) Check(formula string, actor, target *engine.Combatant, round int) (bool, error) {
	prg, err := ev.program(formula)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"actor":  combatantVars(actor),
		"target": combatantVars(target),
		"round":  int64(round),
	})
	if err != nil {
		return false, fmt.Errorf("CEL eval error in %q: %w", formula, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("formula %q yields %T, want bool", formula, out.Value())
	}
	return b, nil
}

func (ev *Evaluator) program(formula string) (cel.Program, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if prg, ok := ev.programs[formula]; ok {
		return prg, nil
	}
	ast, issues := ev.env.Compile(formula)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error in %q: %w", formula, issues.Err())
	}
	prg, err := ev.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error in %q: %w", formula, err)
	}
	ev.programs[formula] = prg
	return prg, nil
}

// Roll evaluates simple dice notation: "d20", "2d6" or "1d8+3".
func (ev *Evaluator) Roll(dice string) (int, error) {
	expr, mod := strings.ReplaceAll(dice, " ", ""), 0
	if head, tail, ok := strings.Cut(expr, "+"); ok {
		if _, err := fmt.Sscanf(tail, "%d", &mod); err != nil {
			return 0, fmt.Errorf("bad dice modifier in %q", dice)
		}
		expr = head
	}
	if strings.HasPrefix(expr, "d") {
		expr = "1" + expr
	}
	var count, sides int
	if _, err := fmt.Sscanf(expr, "%dd%d", &count, &sides); err != nil || count < 1 || sides < 1 {
		return 0, fmt.Errorf("bad dice expression %q", dice)
	}
	total := mod
	for range count {
		total += ev.rng.IntN(sides) + 1
	}
	return total, nil
}

// combatantVars flattens c into the map shape formulas read, e.g.
// actor.hp, actor.stats.strength or actor.resources.mana.
func combatantVars(c *engine.Combatant) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	stats := make(map[string]any, len(c.Stats)+8)
	for k, v := range c.Stats {
		stats[k] = v
	}
	for _, name := range []string{
		engine.StatAccuracy, engine.StatEvasion, engine.StatArmor, engine.StatMagicResistance,
		engine.StatCriticalChance, engine.StatCriticalMultiplier, engine.StatStealth, engine.StatDetection,
	} {
		stats[name] = c.Stat(name)
	}
	resources := make(map[string]any, len(c.Resources))
	for k, r := range c.Resources {
		resources[k] = int64(r.Current)
	}
	effects := make([]string, 0, len(c.Effects))
	for _, e := range c.Effects {
		effects = append(effects, e.EffectID)
	}
	return map[string]any{
		"id":        c.ID,
		"name":      c.Name,
		"faction":   string(c.Faction),
		"hp":        int64(c.HP),
		"max_hp":    int64(c.MaxHP),
		"alive":     c.Alive(),
		"stats":     stats,
		"resources": resources,
		"effects":   effects,
	}
}
