package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/eduvid/harvester"
	"github.com/eduvid/harvester/pkg/config"
	"github.com/eduvid/harvester/pkg/core"
	"github.com/eduvid/harvester/pkg/runstate"
)

func run(args []string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "run":
		return runHarvest(args[1:])
	case "pause":
		return runPause()
	case "resume":
		return runResume()
	case "status":
		return runStatus()
	case "summary":
		return runSummary()
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Println("harvester: topic-driven educational video pipeline")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       execute a harvest run (see run -h for flags)")
	fmt.Println("  pause     pause the active run; in-flight downloads finish")
	fmt.Println("  resume    resume a paused run")
	fmt.Println("  status    print run state counters")
	fmt.Println("  summary   print topic hierarchy and run totals")
	fmt.Println()
	fmt.Println("Configuration comes from .env or environment variables.")
}

func runHarvest(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	mode := fs.String("mode", "all", "what to do: discover, download, or all")
	maxPer := fs.Int("max", 0, "videos per subtopic (0 uses the configured default)")
	resume := fs.Bool("resume", false, "keep existing run state instead of resetting")
	cronExpr := fs.String("cron", "", "run on a cron schedule instead of once")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var m core.Mode
	switch *mode {
	case "discover":
		m = harvester.ModeDiscover
	case "download":
		m = harvester.ModeDownload
	case "all":
		m = harvester.ModeCombined
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	h, err := harvester.New(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	if cfg.MetricsListen != "" {
		go serveMetrics(cfg.MetricsListen, h)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := harvester.Options{Mode: m, MaxPerSubtopic: *maxPer, Resume: *resume}
	if *cronExpr != "" {
		return h.RunEvery(ctx, harvester.Cron(*cronExpr), opts)
	}
	summary, err := h.Run(ctx, opts)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func serveMetrics(addr string, h *harvester.Harvester) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h.MetricsHandler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}

// Pause, resume and status operate on the shared state document, so they
// work from a separate process while a run is active.

func runPause() error {
	state, err := openState()
	if err != nil {
		return err
	}
	if err := state.Pause(); err != nil {
		return err
	}
	fmt.Println("paused")
	return nil
}

func runResume() error {
	state, err := openState()
	if err != nil {
		return err
	}
	if err := state.Resume(); err != nil {
		return err
	}
	fmt.Println("resumed")
	return nil
}

func runStatus() error {
	state, err := openState()
	if err != nil {
		return err
	}
	return printJSON(state.Summary())
}

func runSummary() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	h, err := harvester.New(cfg)
	if err != nil {
		return err
	}
	defer h.Close()
	return printJSON(h.Summarize())
}

func openState() (*runstate.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return runstate.Open(cfg.StatePath())
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
