package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/spf13/cobra"

	"github.com/suderio/skirmish/internal/combat"
	"github.com/suderio/skirmish/internal/parser"
	"github.com/suderio/skirmish/internal/session"
)

var playCmd = &cobra.Command{
	Use:   "play [encounter]",
	Short: "Play an encounter one command at a time",
	Long: `Starts a prompt where each line is one command. Without "by:" the
combatant holding the turn acts. Examples:

	> attack to: goblin-1
	> cast firebolt by: wren to: chief
	> move to: 3 4
	> perceive by: wren at: goblin-3 with: 5
	> ready when: moves watch: goblin-1 attack to: goblin-1
	> undo
	> auto

Use --resume <combat-id> to continue a saved combat instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resume, _ := cmd.Flags().GetString("resume")
		if resume == "" && len(args) == 0 {
			return fmt.Errorf("play needs an encounter or --resume <combat-id>")
		}

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		id := resume
		if id != "" {
			if _, err := a.engine.Load(ctx, id); err != nil {
				return err
			}
		} else if id, err = a.start(ctx, args[0]); err != nil {
			return err
		}

		r := newREPL(a.engine, id, cmd.OutOrStdout())
		return r.run(ctx, cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().String("resume", "", "id of a saved combat to continue")
}

// repl reads commands for one combat and prints what they did.
type repl struct {
	engine *session.Engine
	id     string
	out    io.Writer
	parser *participle.Parser[parser.Command]
}

func newREPL(e *session.Engine, id string, out io.Writer) *repl {
	return &repl{engine: e, id: id, out: out, parser: parser.Build()}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	if err := r.status(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, r.prompt())
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		quit, err := r.handle(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
		}
		if quit {
			return nil
		}
	}
}

func (r *repl) prompt() string {
	snap, err := r.engine.Snapshot(r.id)
	if err != nil || snap.CurrentTurnID == "" {
		return "> "
	}
	return infoStyle.Render(fmt.Sprintf("[r%d %s]", snap.Round, snap.CurrentTurnID)) + " > "
}

func (r *repl) current() string {
	snap, err := r.engine.Snapshot(r.id)
	if err != nil {
		return ""
	}
	return snap.CurrentTurnID
}

// handle runs one line. quit is true when the player asked to leave.
func (r *repl) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	cmd, err := r.parser.ParseString("", line)
	if err != nil {
		return false, parser.MapError(line, err)
	}
	current := r.current()

	if req, ok := cmd.Request(current); ok {
		return false, r.print(r.engine.SubmitAction(ctx, r.id, req))
	}

	switch cmd.Name() {
	case "delay":
		return false, r.print(r.engine.Delay(ctx, r.id, cmd.Actor(current)))
	case "ready":
		trigger, watch, req, _ := cmd.Readied(current)
		return false, r.print(r.engine.Ready(ctx, r.id, req.SourceID, trigger, watch, req))
	case "undo":
		if err := r.print(r.engine.Undo(ctx, r.id)); err != nil {
			return false, err
		}
		return false, r.status()
	case "pause":
		return false, r.print(r.engine.Pause(ctx, r.id))
	case "resume":
		return false, r.print(r.engine.Resume(ctx, r.id))
	case "end":
		reason := cmd.Phase.Reason
		if reason == "" {
			reason = "ended by player"
		}
		return false, r.print(r.engine.End(ctx, r.id, reason))
	case "auto":
		return false, r.print(r.engine.Step(ctx, r.id))
	case "look", "perceive":
		return false, r.look(cmd, current)
	case "actions":
		return false, r.actions(cmd.Actor(current))
	case "status":
		return false, r.status()
	case "log":
		return false, r.engine.View(r.id, func(c *combat.Combat) error {
			fmt.Fprintln(r.out, logBoxStyle.Render(renderLog(c.Log(15))))
			return nil
		})
	case "help":
		fmt.Fprint(r.out, parser.Usage())
		return false, nil
	case "quit", "exit":
		return true, nil
	}
	return false, fmt.Errorf("%w: %q", parser.ErrUnknownCommand, cmd.Name())
}

func (r *repl) print(res *session.Result, err error) error {
	if err != nil {
		return err
	}
	for _, evt := range res.Events {
		fmt.Fprintln(r.out, renderEvent(evt))
	}
	return nil
}

func (r *repl) status() error {
	snap, err := r.engine.Snapshot(r.id)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, renderSnapshot(snap, 5))
	return nil
}

func (r *repl) actions(id string) error {
	return r.engine.View(r.id, func(c *combat.Combat) error {
		av, err := c.AvailableActions(id)
		if err != nil {
			return err
		}
		if len(av.Kinds) == 0 {
			fmt.Fprintf(r.out, "%s cannot act right now\n", id)
			return nil
		}
		kinds := make([]string, len(av.Kinds))
		for i, k := range av.Kinds {
			kinds[i] = string(k)
		}
		fmt.Fprintf(r.out, "%s may: %s\n", id, strings.Join(kinds, ", "))
		if len(av.Skills) > 0 {
			fmt.Fprintf(r.out, "  skills: %s\n", strings.Join(av.Skills, ", "))
		}
		if len(av.Items) > 0 {
			fmt.Fprintf(r.out, "  items: %s\n", strings.Join(av.Items, ", "))
		}
		return nil
	})
}

func (r *repl) look(cmd *parser.Command, current string) error {
	observer := cmd.Actor(current)
	target := cmd.Look.Target
	return r.engine.View(r.id, func(c *combat.Combat) error {
		for _, id := range []string{observer, target} {
			if _, err := c.Combatant(id); err != nil {
				return err
			}
		}
		if cmd.Name() == "look" {
			fmt.Fprintf(r.out, "%s -> %s: %s\n", observer, target, c.Fog().Visibility(observer, target, true))
			return nil
		}
		bonus := 0.0
		if cmd.Look.Bonus != nil {
			bonus = *cmd.Look.Bonus
		}
		check := c.Fog().PerceptionCheck(observer, target, bonus)
		verdict := "fails to spot"
		if check.Success {
			verdict = "spots"
		}
		fmt.Fprintf(r.out, "%s %s %s (%d vs %d, margin %.1f)\n", observer, verdict, target, check.ObserverRoll, check.TargetRoll, check.Margin)
		return nil
	})
}
