package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/fatih/color"

	"ai-citation-be/internal/config"
	"ai-citation-be/internal/pkg/logger"
	"ai-citation-be/pkg/nats"
	"ai-citation-be/pkg/reaper"
	"ai-citation-be/pkg/vectorstore"
)

// Standalone deletion job: compares every tracked index against the age
// threshold and removes the stale ones from the remote store. Run it from
// cron or a scheduler; one invocation is one pass.
func main() {
	var (
		dryRun    = flag.Bool("dry-run", false, "report stale indexes without deleting them")
		threshold = flag.Duration("threshold", 0, "override the configured max index age")
	)
	flag.Parse()

	cfg := config.Load()
	if *threshold > 0 {
		cfg.Reaper.Threshold = *threshold
	}

	reaperLogger := logger.NewIsolatedLogger("logs/reaper.log")

	client := vectorstore.NewClient(vectorstore.ClientConfig{
		APIKey:  cfg.Keys.VectorStore,
		BaseURL: cfg.Vector.BaseURL,
	})

	r := reaper.New(client, cfg.Reaper.RegistryFile, cfg.Reaper.Threshold, reaperLogger)

	natsPub, err := nats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		reaperLogger.Warn("reaper", "nats unavailable, deletions will not be announced", map[string]interface{}{"error": err.Error()})
	} else {
		defer natsPub.Close()
		r = r.WithPublisher(natsPub)
	}

	if *dryRun {
		stale, err := r.Preview()
		if err != nil {
			log.Fatal(err)
		}
		for bucket, names := range stale {
			for _, name := range names {
				color.Cyan("would delete %s (bucket %s)", name, bucket)
			}
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	result, err := r.Run(ctx)
	if err != nil {
		color.Red("reaper pass failed: %v", err)
		log.Fatal(err)
	}

	color.Green("deleted %d stale indexes in %s", len(result.Deleted), time.Since(start).Round(time.Millisecond))
	for _, name := range result.Deleted {
		color.Green("  - %s", name)
	}
	if len(result.Failed) > 0 {
		color.Yellow("failed to delete %d indexes (kept in registry):", len(result.Failed))
		for _, name := range result.Failed {
			color.Yellow("  - %s", name)
		}
	}
	color.Cyan("%d indexes retained", result.Retained)
}
