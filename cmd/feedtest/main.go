// feedtest fetches one round of quotes through the configured feed
// adapters and prints the samples, for checking connectivity before
// running the engine.
// Usage: go run ./cmd/feedtest --config configs/tickpoll.yaml --symbols ABC,DEF
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mkofler/tickpoll/internal/config"
	"github.com/mkofler/tickpoll/internal/feed"
)

func main() {
	configPath := flag.String("config", "configs/tickpoll.yaml", "path to config file")
	symbols := flag.String("symbols", "", "comma-separated symbols to fetch")
	useStream := flag.Bool("stream", false, "use the websocket feed instead of REST")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	syms := strings.Split(*symbols, ",")
	if *symbols == "" {
		logger.Error("no symbols given")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var src feed.Source
	if *useStream {
		stream := feed.NewStreamSource(feed.DefaultStreamConfig(cfg.Feed.WSURL, cfg.Feed.APIKey), logger)
		if err := stream.Start(ctx); err != nil {
			logger.Error("failed to start stream", "error", err)
			os.Exit(1)
		}
		defer stream.Stop(ctx)

		// Give the stream a moment to connect and receive pushes.
		if _, err := stream.FetchQuotes(ctx, syms); err != nil {
			logger.Error("subscribe failed", "error", err)
			os.Exit(1)
		}
		time.Sleep(2 * time.Second)
		src = stream
	} else {
		src = feed.NewHTTPSource(
			cfg.Feed.RestURL,
			cfg.Feed.APIKey,
			feed.WithTimeout(cfg.Feed.Timeout.Std()),
			feed.WithLogger(logger),
		)
	}

	samples, err := src.FetchQuotes(ctx, syms)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		os.Exit(1)
	}

	for _, s := range samples {
		fmt.Printf("%-10s %s %s %10.2f\n", s.Symbol, s.Day, s.Instant, s.Price)
	}
	fmt.Printf("%d samples\n", len(samples))
}
