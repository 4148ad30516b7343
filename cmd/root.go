package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dvhop",
	Short: "DV-Hop localization simulator",
	Long: `dvhop simulates range-free localization of a wireless sensor network.
Beacons that know their position flood the network, every node counts hops to them, and nodes estimate their own position from hop distances.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cfg",
		Title: "Scenario Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sim",
		Title: "Simulation Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "config", "c", DefaultConfigPath, "scenario config")
}
