// Command lookup runs a single aggregation for a ZIP code and prints the
// response as JSON. It uses the same configuration as the service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/app"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/config"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/observability"
)

func main() {
	zip := flag.String("zip", "", "5-digit ZIP code to search")
	pretty := flag.Bool("pretty", false, "indent JSON output")
	flag.Parse()

	if err := run(*zip, *pretty); err != nil {
		fmt.Fprintln(os.Stderr, "lookup:", err)
		if domain.IsInvalidInput(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(zip string, pretty bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewStderrLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer svc.Close()

	resp, err := svc.Aggregator.Aggregate(ctx, zip)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}
