package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/dvhop/sim"
	"github.com/encodeous/dvhop/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var gridOpts = sim.DefaultGridOptions()

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Generates a grid scenario",
	Long: `Generates the standard DV-Hop example: nodes on a row-first grid with three beacons, a distance dump at 9s and a routing dump at 8s.
The scenario is written to the --out path, or to stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := sim.GridScenario(gridOpts)
		if err != nil {
			panic(err)
		}
		err = state.ScenarioValidator(&cfg)
		if err != nil {
			panic(err)
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				panic(err)
			}
			fmt.Print(string(data))
			return
		}
		err = state.WriteScenario(out, &cfg)
		if err != nil {
			panic(err)
		}
		fmt.Fprintf(os.Stderr, "Creating %d nodes %v m apart, scenario written to %s\n", gridOpts.Size, gridOpts.Step, out)
	},
	GroupID: "cfg",
}

func init() {
	rootCmd.AddCommand(gridCmd)
	gridCmd.Flags().IntVar(&gridOpts.Size, "size", gridOpts.Size, "Number of nodes")
	gridCmd.Flags().Float64Var(&gridOpts.Step, "step", gridOpts.Step, "Grid step in metres")
	gridCmd.Flags().IntVar(&gridOpts.Width, "width", gridOpts.Width, "Nodes per row")
	gridCmd.Flags().Float64Var(&gridOpts.Range, "range", 0, "Radio range in metres, 1.2 × step when unset")
	gridCmd.Flags().IntSliceVar(&gridOpts.Beacons, "beacons", gridOpts.Beacons, "Indices of the beacon nodes")
	gridCmd.Flags().DurationVar(&gridOpts.Duration, "duration", gridOpts.Duration, "Simulated time")
	gridCmd.Flags().Uint64Var(&gridOpts.Seed, "seed", gridOpts.Seed, "Random seed")
	gridCmd.Flags().StringVar(&gridOpts.OutDir, "dump-dir", "", "Directory for the dumps, stdout when unset")
	gridCmd.Flags().StringP("out", "o", "", "Write the scenario to this path")
}
