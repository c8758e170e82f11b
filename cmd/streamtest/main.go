// streamtest connects to a coinfeed push channel and prints each pushed snapshot.
// Usage: go run ./cmd/streamtest --url ws://localhost:5000/ws
//
// With --top N it also prints the N largest assets by market cap from each push.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rickgao/coinfeed/internal/connection"
	"github.com/rickgao/coinfeed/internal/model"
	"github.com/rickgao/coinfeed/internal/query"
)

func main() {
	url := flag.String("url", "ws://localhost:5000/ws", "push channel URL")
	origin := flag.String("origin", "", "Origin header to send")
	top := flag.Int("top", 5, "assets to print per push, by market cap")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := connection.DefaultWatcherConfig()
	cfg.Client.URL = *url
	cfg.Client.Origin = *origin

	watcher := connection.NewWatcher(cfg, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start watcher", "err", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := watcher.Stats()
				logger.Info("stats",
					"connected", stats.Connected,
					"connects", stats.Connects,
					"updates", stats.Updates,
					"dropped", stats.Dropped,
					"decode_errors", stats.DecodeErrors,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "url", *url)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			watcher.Stop(shutdownCtx)
			cancel()
			logger.Info("shutdown complete")
			return
		case u, ok := <-watcher.Updates():
			if !ok {
				return
			}
			printUpdate(u, *top, *verbose)
		}
	}
}

func printUpdate(u connection.Update, top int, verbose bool) {
	msg := u.Message

	if verbose {
		data, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Printf("[PUSH] %s\n", data)
		return
	}

	missingPrice := 0
	for _, r := range msg.Data {
		if r.Price.IsMissing() {
			missingPrice++
		}
	}

	age := "unknown"
	if ts, err := time.Parse(model.TimeLayout, msg.LastUpdated); err == nil {
		age = u.ReceivedAt.Sub(ts).Round(time.Millisecond).String()
	}

	fmt.Printf("[PUSH] records=%d bytes=%d last_updated=%s age=%s missing_price=%d\n",
		len(msg.Data), u.Size, msg.LastUpdated, age, missingPrice)

	if top <= 0 {
		return
	}

	records := slices.Clone(msg.Data)
	slices.SortStableFunc(records, func(a, b model.CoinRecord) int {
		return query.Compare(query.FieldMarketCap, query.Desc, a, b)
	})
	for i, r := range records[:min(top, len(records))] {
		fmt.Printf("  %2d. %-8s %-24s price=%s market_cap=%s 24h=%s%%\n",
			i+1, r.Symbol, r.Name, r.Price, r.MarketCap, r.PercentChange24h)
	}
}
