package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ggorockee/shopfinder/internal/logger"
	"github.com/ggorockee/shopfinder/pkg/placesclient"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL")); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.GetLogger("main")

	server := flag.String("server", "http://localhost:5108", "shopfinder API base URL")
	query := flag.String("query", "clothes", "what to search for")
	lat := flag.Float64("lat", placesclient.DefaultLat, "latitude")
	lng := flag.Float64("lng", placesclient.DefaultLng, "longitude")
	radius := flag.Int("radius", placesclient.DefaultRadius, "search radius in meters")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	// positional argument overrides -query
	if flag.NArg() > 0 {
		*query = strings.Join(flag.Args(), " ")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client := placesclient.New(*server)

	start := time.Now()
	results, err := client.Search(ctx, *query, *lat, *lng, *radius)
	if err != nil {
		log.Errorw("Search failed", "query", *query, "error", err)
		os.Exit(1)
	}
	log.Infow("Search complete", "query", *query, "results", len(results), "elapsed", time.Since(start))

	for i, p := range results {
		fmt.Printf("%2d. %s\n", i+1, p.Name)
		fmt.Printf("    %s\n", p.Address)
		if p.OpeningHoursSummary != "" {
			fmt.Printf("    hours: %s\n", p.OpeningHoursSummary)
		}
		if p.PhoneNumber != "" {
			fmt.Printf("    phone: %s\n", p.PhoneNumber)
		}
		if p.PhotoReference != "" {
			fmt.Printf("    photo: %s\n", client.PhotoURL(p.PhotoReference, placesclient.DefaultMaxWidth))
		}
		fmt.Printf("    directions: %s\n", p.DirectionsURL())
	}
}
