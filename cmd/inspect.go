package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/dvhop/sim"
	"github.com/encodeous/dvhop/state"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect [node]",
	Aliases: []string{"i"},
	Short:   "Runs a scenario up to a point in time and prints node tables",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadScenario()
		// the scenario's own dumps are not written
		cfg.Dumps = nil
		at, _ := cmd.Flags().GetDuration("at")
		if at <= 0 || at > cfg.Duration {
			at = cfg.Duration
		}
		sink := logSink(cmd, cfg)
		defer sink.Close()

		h, err := sim.Build(*cfg, sim.Options{Logs: sink, Output: os.Stdout})
		if err != nil {
			panic(err)
		}
		defer h.Stop()

		kind := state.DumpDistance
		if routes, _ := cmd.Flags().GetBool("routes"); routes {
			kind = state.DumpRouting
		}
		if len(args) == 1 {
			id := state.NodeId(args[0])
			if kind == state.DumpRouting {
				err = h.PrintRoutingTableAt(id, at, os.Stdout)
			} else {
				err = h.PrintDistanceTableAt(id, at, os.Stdout)
			}
			if err != nil {
				fmt.Println("Error:", err.Error())
				return
			}
		} else if kind == state.DumpRouting {
			h.PrintRoutingTableAllAt(at, os.Stdout)
		} else {
			h.PrintDistanceTableAllAt(at, os.Stdout)
		}

		err = h.RunUntil(at)
		if err != nil {
			panic(err)
		}
		fmt.Fprintln(os.Stderr, h.Accuracy().String())
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	inspectCmd.Flags().Duration("at", 0, "Simulated time to inspect at, the end of the scenario when unset")
	inspectCmd.Flags().BoolP("routes", "r", false, "Print routing tables instead of distance tables")
}
