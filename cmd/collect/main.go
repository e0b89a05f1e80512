// Command collect drives a simulator through a YAML collection plan and
// records every attached sensor into the dataset layout. With -dev it
// replays a previously recorded variant instead of connecting to a live
// simulator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/scenario.report/internal/collect"
	"github.com/banshee-data/scenario.report/internal/config"
	"github.com/banshee-data/scenario.report/internal/monitoring"
	"github.com/banshee-data/scenario.report/internal/sim"
	"github.com/banshee-data/scenario.report/internal/version"
)

type options struct {
	PlanPath    string
	Root        string
	DevDir      string
	MaxBuffered int
	StatsPath   string
}

// errNoSimulator is returned when no simulator backend is available.
var errNoSimulator = errors.New("no live simulator backend is compiled in: use -dev <recorded variant dir> to replay")

func main() {
	var o options
	configPath := flag.String("config", "", "JSON tool config (default "+config.DefaultConfigPath+" when present)")
	interactive := flag.Bool("interactive", false, "Read r (toggle recording), q or Esc (stop) from the terminal")
	verbose := flag.Bool("v", false, "Verbose logging")
	showVer := flag.Bool("version", false, "Print version and exit")
	flag.StringVar(&o.PlanPath, "plan", "", "YAML collection plan (required)")
	flag.StringVar(&o.Root, "root", "", "Dataset root (overrides dataset_root)")
	flag.StringVar(&o.DevDir, "dev", "", "Replay this recorded variant directory instead of a live simulator")
	flag.IntVar(&o.MaxBuffered, "max-buffered", 256, "Flush to disk after this many buffered measurements")
	flag.StringVar(&o.StatsPath, "stats", "", "Write run statistics as JSON to this file")
	flag.Parse()

	if *showVer {
		fmt.Println(version.String("collect"))
		return
	}
	monitoring.SetVerbose(*verbose)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if o.Root == "" {
		o.Root = cfg.GetDatasetRoot()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Log lines end in \r so they still render while the terminal is raw.
	var keys <-chan collect.Key
	if *interactive {
		k, restore, err := collect.TerminalKeys(ctx, os.Stdin)
		if err != nil {
			log.Fatalf("interactive mode: %v", err)
		}
		defer func() {
			if err := restore(); err != nil {
				log.Printf("failed to restore terminal: %v", err)
			}
		}()
		keys = k
		log.Printf("press r to toggle recording, q or Esc to stop\r")
	}

	stats, err := run(ctx, o, keys)
	if err != nil {
		log.Printf("collect failed: %v\r", err)
		stop()
		os.Exit(1)
	}
	log.Printf("%s after %d ticks: wrote %v, discarded %d, failed %d\r",
		stats.Reason, stats.Ticks, stats.Session.Written, stats.Session.Discarded, stats.Session.Failed)
}

func run(ctx context.Context, o options, keys <-chan collect.Key) (collect.RunStats, error) {
	if o.PlanPath == "" {
		return collect.RunStats{}, errors.New("-plan is required")
	}
	plan, err := collect.LoadPlan(o.PlanPath)
	if err != nil {
		return collect.RunStats{}, err
	}
	ref, err := plan.Ref(o.Root)
	if err != nil {
		return collect.RunStats{}, err
	}

	client, err := newClient(o)
	if err != nil {
		return collect.RunStats{}, err
	}
	defer client.Close()

	session := collect.NewSession(ref, collect.SessionOptions{
		MaxBuffered:    o.MaxBuffered,
		StartRecording: plan.Record,
	})
	log.Printf("collecting %s (%d sensors) into %s\r", ref, len(plan.Sensors), ref.Dir())

	stats, err := collect.Run(ctx, client, plan, session, keys)
	if err != nil {
		return stats, err
	}
	if o.StatsPath != "" {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return stats, err
		}
		if err := os.WriteFile(o.StatsPath, append(data, '\n'), 0o644); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func newClient(o options) (sim.Client, error) {
	if o.DevDir == "" {
		return nil, errNoSimulator
	}
	c, err := sim.NewReplayClient(o.DevDir)
	if err != nil {
		return nil, err
	}
	log.Printf("replaying %d frames from %s\r", c.Frames(), o.DevDir)
	return c, nil
}
