package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adsim/internal/service"
	"adsim/internal/sim"
)

// newSimulateCmd runs a whole campaign offline against a scenario file and
// prints the day-by-day outcomes as JSON. No database involved; useful for
// scenario authoring and replay checks.
func newSimulateCmd() *cobra.Command {
	var (
		scenarioPath string
		seed         int64
		days         int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a full campaign offline from a scenario file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := service.LoadScenarioFile(scenarioPath)
			if err != nil {
				return err
			}
			if days != service.DurationShort && days != service.DurationLong {
				return fmt.Errorf("days must be %d or %d", service.DurationShort, service.DurationLong)
			}
			if seed < 0 {
				return fmt.Errorf("seed must be non-negative")
			}

			state := sim.NewRunState()
			outcomes := make([]*sim.DayOutcome, 0, days)
			for day := 1; day <= days; day++ {
				outcomes = append(outcomes, sim.SimulateDay(cfg, seed, day, state))
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"scenario": cfg.Slug,
				"seed":     seed,
				"days":     outcomes,
			})
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to scenario YAML file")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Simulation seed")
	cmd.Flags().IntVar(&days, "days", service.DurationShort, "Campaign length in days")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}
