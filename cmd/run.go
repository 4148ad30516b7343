package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/encodeous/dvhop/perf"
	"github.com/encodeous/dvhop/sim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Long: `Runs the scenario to completion and writes the dumps it lists.
By default simulated time runs as fast as possible. With --realtime it is paced against the wall clock.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadScenario()
		sink := logSink(cmd, cfg)
		defer sink.Close()
		log := sink.Logger("dvhop")

		var metrics *perf.ProtocolCollector
		if addr, _ := cmd.Flags().GetString("metrics"); addr != "" {
			reg := prometheus.NewRegistry()
			var err error
			metrics, err = perf.NewProtocolCollector(reg)
			if err != nil {
				panic(err)
			}
			http.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: addr, Handler: http.DefaultServeMux}
			go func() {
				err := srv.ListenAndServe()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server failed", "error", err)
				}
			}()
			defer srv.Close()
			log.Info("serving metrics", "addr", addr)
		}

		h, err := sim.Build(*cfg, sim.Options{
			Logs:    sink,
			Metrics: metrics,
			Output:  os.Stdout,
		})
		if err != nil {
			panic(err)
		}

		start := time.Now()
		if realtime, _ := cmd.Flags().GetBool("realtime"); realtime {
			speed, _ := cmd.Flags().GetFloat64("speed")
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			err = h.RunRealtime(ctx, speed)
		} else {
			err = h.Run()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			panic(err)
		}
		log.Info("simulation complete", "simulated", h.Engine.Elapsed(), "wall", time.Since(start), "run", sink.RunId)
		fmt.Fprintln(os.Stderr, h.Accuracy().String())
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().Bool("realtime", false, "Pace the simulation against the wall clock")
	runCmd.Flags().Float64("speed", 1, "Simulated seconds per wall clock second, with --realtime")
	runCmd.Flags().String("metrics", "", "Serve prometheus metrics and /debug/metrics on this address")
}
