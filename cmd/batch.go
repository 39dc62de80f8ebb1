package cmd

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/suderio/skirmish/internal/engine"
	"github.com/suderio/skirmish/internal/session"
)

var batchCmd = &cobra.Command{
	Use:   "batch <encounter>",
	Short: "Run many seeded simulations of an encounter and tally the winners",
	Long: `Runs the encounter n times with seeds base, base+1, ... spread over j
workers and reports how often each side won.

	skirmish batch ambush -n 500 -j 8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("runs")
		jobs, _ := cmd.Flags().GetInt("jobs")
		maxTurns, _ := cmd.Flags().GetInt("max-turns")
		if n < 1 {
			return fmt.Errorf("--runs must be at least 1")
		}
		if jobs < 1 {
			jobs = runtime.GOMAXPROCS(0)
		}

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		base, err := a.spec(args[0])
		if err != nil {
			return err
		}
		seed := base.Seed
		if seed == 0 {
			seed = engine.NewSeed()
		}

		specs := make([]session.EncounterSpec, n)
		for i := range specs {
			if specs[i], err = a.spec(args[0]); err != nil {
				return err
			}
			specs[i].ID = fmt.Sprintf("batch-%d", i+1)
			specs[i].Seed = seed + uint64(i)
		}

		var (
			mu     sync.Mutex
			tally  = make(map[string]int)
			rounds int
		)
		bar := progressbar.Default(int64(n), "Simulating")
		ctx := cmd.Context()
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(jobs)
		for _, spec := range specs {
			g.Go(func() error {
				if _, err := a.engine.CreateEncounter(ctx, spec); err != nil {
					return err
				}
				snap, err := a.engine.Run(ctx, spec.ID, maxTurns, nil)
				if err != nil && !errors.Is(err, session.ErrTurnLimit) {
					return fmt.Errorf("%s (seed %d): %w", spec.ID, spec.Seed, err)
				}
				outcome := string(snap.Victor)
				switch {
				case err != nil:
					outcome = "unfinished"
				case outcome == "":
					outcome = "draw"
				}
				mu.Lock()
				tally[outcome]++
				rounds += snap.Round
				mu.Unlock()
				return bar.Add(1)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out)
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf(" %s: %d runs, seeds %d..%d ", base.Name, n, seed, seed+uint64(n-1))))
		fmt.Fprintln(out, stateBoxStyle.Render(renderTally(tally, n, float64(rounds)/float64(n))))
		return nil
	},
}

func renderTally(tally map[string]int, n int, avgRounds float64) string {
	outcomes := make([]string, 0, len(tally))
	for k := range tally {
		outcomes = append(outcomes, k)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		if tally[outcomes[i]] != tally[outcomes[j]] {
			return tally[outcomes[i]] > tally[outcomes[j]]
		}
		return outcomes[i] < outcomes[j]
	})
	var b strings.Builder
	for _, o := range outcomes {
		style, ok := factionStyles[engine.Faction(o)]
		if !ok {
			style = infoStyle
		}
		fmt.Fprintf(&b, "%s %5d  %5.1f%%\n", style.Render(fmt.Sprintf("%-10s", o)), tally[o], 100*float64(tally[o])/float64(n))
	}
	fmt.Fprintf(&b, "average rounds: %.1f", avgRounds)
	return b.String()
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntP("runs", "n", 100, "number of simulations")
	batchCmd.Flags().IntP("jobs", "j", 0, "concurrent simulations (default GOMAXPROCS)")
	batchCmd.Flags().Int("max-turns", 1000, "stop a simulation after this many actions")
}
