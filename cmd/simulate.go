package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suderio/skirmish/internal/persistence"
	"github.com/suderio/skirmish/internal/session"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <encounter>",
	Short: "Play an encounter to the end with the autopilot",
	Long: `Loads an encounter by name (searched in the data directories and the
built-in library) or by path, lets the autopilot choose every action and
prints the fight as it happens.

	skirmish simulate ambush --seed 42
	skirmish simulate ./encounters/duel.yaml --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		save, _ := cmd.Flags().GetBool("save")
		maxTurns, _ := cmd.Flags().GetInt("max-turns")
		quiet, _ := cmd.Flags().GetBool("quiet")
		asJSON, _ := cmd.Flags().GetBool("json")
		journalPath, _ := cmd.Flags().GetString("journal")

		a, err := newApp(save)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		id, err := a.start(ctx, args[0])
		if err != nil {
			return err
		}

		if journalPath != "" {
			j, err := persistence.OpenJournal(journalPath)
			if err != nil {
				return err
			}
			defer j.Close()
			unsubscribe, err := a.engine.Subscribe(id, j.Record)
			if err != nil {
				return err
			}
			defer unsubscribe()
		}

		out := cmd.OutOrStdout()
		observe := func(res *session.Result) {
			if quiet || asJSON {
				return
			}
			for _, evt := range res.Events {
				fmt.Fprintln(out, renderEvent(evt))
			}
		}
		snap, err := a.engine.Run(ctx, id, maxTurns, observe)
		if err != nil && snap == nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSnapshot(snap, 0))
			if save {
				fmt.Fprintln(out, infoStyle.Render("saved as "+snap.ID))
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Bool("save", false, "persist the combat to the configured store")
	simulateCmd.Flags().Int("max-turns", 1000, "stop after this many actions")
	simulateCmd.Flags().BoolP("quiet", "q", false, "only print the final state")
	simulateCmd.Flags().Bool("json", false, "print the final snapshot as JSON")
	simulateCmd.Flags().String("journal", "", "append every event to this JSONL file")
}
