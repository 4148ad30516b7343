package cmd

import (
	"log/slog"
	"os"

	"github.com/encodeous/dvhop/core"
	"github.com/encodeous/dvhop/state"
	"github.com/spf13/cobra"
)

const DefaultConfigPath = "scenario.yaml"

var scenarioPath = DefaultConfigPath

func loadScenario() *state.ScenarioCfg {
	cfg, err := state.ReadScenario(scenarioPath)
	if err != nil {
		panic(err)
	}
	return cfg
}

// logSink writes logs to stderr so dumps on stdout stay clean
func logSink(cmd *cobra.Command, cfg *state.ScenarioCfg) *core.LogSink {
	level := slog.LevelInfo
	if ok, _ := cmd.Flags().GetBool("verbose"); ok {
		level = slog.LevelDebug
	}
	sink, err := core.NewLogSink(level, os.Stderr, cfg.LogPath)
	if err != nil {
		panic(err)
	}
	return sink
}
