package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <combat-id>",
	Short: "Load a saved combat and print its state",
	Long: `Reads a combat from the configured store (see --store-driver and
--store-path) and prints the current snapshot with its newest log lines.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, _ := cmd.Flags().GetInt("log")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		snap, err := a.engine.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		fmt.Fprintln(out, renderSnapshot(snap, lines))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().Int("log", 10, "number of log lines to show")
	loadCmd.Flags().Bool("json", false, "print the snapshot as JSON")
}
