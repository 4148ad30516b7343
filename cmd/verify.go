package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates a scenario and summarises its topology",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadScenario()
		adj, err := cfg.Adjacency()
		if err != nil {
			panic(err)
		}
		links, err := cfg.Links()
		if err != nil {
			panic(err)
		}
		isolated := make([]string, 0)
		for _, id := range cfg.NodeIds() {
			if len(adj[id]) == 0 {
				isolated = append(isolated, string(id))
			}
		}
		fmt.Printf("scenario %q is valid\n", cfg.Name)
		fmt.Printf("nodes: %d, beacons: %d, links: %d\n", len(cfg.Nodes), len(cfg.Beacons()), len(links))
		fmt.Printf("duration: %v, seed: %d\n", cfg.Duration, cfg.Seed)
		if len(cfg.Beacons()) < cfg.Protocol.MinBeacons {
			fmt.Printf("warning: %d beacons cannot localize anyone, %d are needed\n", len(cfg.Beacons()), cfg.Protocol.MinBeacons)
		}
		if len(isolated) > 0 {
			fmt.Printf("warning: isolated nodes: %s\n", strings.Join(isolated, ", "))
		}
	},
	GroupID: "cfg",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
