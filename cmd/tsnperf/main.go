package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NodePath81/tsnperf/internal/config"
	"github.com/NodePath81/tsnperf/internal/control"
	"github.com/NodePath81/tsnperf/internal/frer"
	"github.com/NodePath81/tsnperf/internal/report"
	"github.com/NodePath81/tsnperf/internal/store"
	"github.com/NodePath81/tsnperf/internal/suite"
	"github.com/NodePath81/tsnperf/internal/util"
	"github.com/NodePath81/tsnperf/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runCmd := flag.NewFlagSet("run", flag.ExitOnError)
			configPath := runCmd.String("config", "config.yaml", "Path to config file")
			_ = runCmd.Parse(os.Args[2:])
			if *configPath == "config.yaml" && runCmd.NArg() > 0 {
				*configPath = runCmd.Arg(0)
			}
			runSuite(*configPath)
			return
		case "check":
			checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
			configPath := checkCmd.String("config", "config.yaml", "Path to config file")
			_ = checkCmd.Parse(os.Args[2:])
			if *configPath == "config.yaml" && checkCmd.NArg() > 0 {
				*configPath = checkCmd.Arg(0)
			}
			checkConfig(*configPath)
			return
		case "simulate":
			simCmd := flag.NewFlagSet("simulate", flag.ExitOnError)
			samples := simCmd.Int("samples", 1000, "Latency samples per path")
			seed := simCmd.Int64("seed", 0, "RNG seed (0 uses the clock)")
			_ = simCmd.Parse(os.Args[2:])
			runSimulation(*samples, *seed)
			return
		case "help", "-h", "--help":
			printHelp()
			return
		case "version", "-v", "--version":
			fmt.Println(version.Version)
			return
		}
	}

	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()
	if *configPath == "config.yaml" && len(flag.Args()) > 0 {
		*configPath = flag.Arg(0)
	}
	runSuite(*configPath)
}

func runSuite(configPath string) {
	logger := util.NewLogger()
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("config load failed", "path", configPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runs *store.Store
	if cfg.Store.IsEnabled() {
		runs, err = store.Open(cfg.Store.Path)
		if err != nil {
			logger.Error("run store unavailable", "path", cfg.Store.Path, "error", err)
			os.Exit(1)
		}
		defer runs.Close()
	}

	var tracker *control.Tracker
	if cfg.Status.IsEnabled() {
		tracker = control.NewTracker(ctx.Done())
		server := control.NewServer(cfg.Status.Addr, cfg.Status.Port, tracker, runs, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	runID := store.NewRunID()
	started := time.Now()
	logger.Info("benchmark starting", "run_id", runID, "target", cfg.TargetIP, "frame_sizes", cfg.FrameSizes)

	results, err := suite.New(cfg, logger, tracker).Run(ctx, runID)
	if err != nil {
		logger.Error("benchmark aborted", "run_id", runID, "error", err)
		os.Exit(1)
	}

	jsonPath, err := report.WriteJSON(cfg.OutputDir, results)
	if err != nil {
		logger.Error("results write failed", "error", err)
		os.Exit(1)
	}
	summaryPath, err := report.WriteSummary(cfg.OutputDir, results)
	if err != nil {
		logger.Error("summary write failed", "error", err)
		os.Exit(1)
	}

	if runs != nil {
		raw, err := json.Marshal(results)
		if err == nil {
			err = runs.SaveRun(store.Run{
				ID:         runID,
				StartedAt:  started,
				FinishedAt: time.Now(),
				TargetIP:   cfg.TargetIP,
				Interface:  cfg.Interface,
				Results:    raw,
			})
		}
		if err != nil {
			logger.Warn("run history not saved", "run_id", runID, "error", err)
		}
	}

	logger.Info("benchmark complete",
		"run_id", runID,
		"elapsed", time.Since(started).Round(time.Second),
		"results", jsonPath,
		"summary", summaryPath)
}

func checkConfig(path string) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config valid: target %s, %d frame sizes\n", cfg.TargetIP, len(cfg.FrameSizes))
	os.Exit(0)
}

// runSimulation runs the FRER dual-path model without touching the
// network and prints the comparison.
func runSimulation(samples int, seed int64) {
	simCfg := frer.DefaultSimConfig()
	simCfg.Samples = samples
	simCfg.Seed = seed

	path1, path2 := frer.Simulate(simCfg)
	cmp, err := frer.Compare(path1, path2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}
	raw, err := json.MarshalIndent(cmp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(raw))
}

func printHelp() {
	fmt.Print(`tsnperf - RFC 2544 benchmark suite for TSN networks

Usage:
  tsnperf run --config <path>       Run the benchmark suite
  tsnperf check --config <path>     Validate config file
  tsnperf simulate [--samples N] [--seed S]
                                    Run the FRER dual-path simulation
  tsnperf help                      Show this help
  tsnperf version                   Print version

Legacy:
  tsnperf --config <path>
  tsnperf <config-path>
`)
}
