// Command agent runs a standalone sync agent against a workbase
// backend: it connects, authenticates with the access token it is
// given, and prints every cache invalidation and notification it
// receives. Useful for watching the live stream during development.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelari/workbase-backend/internal/platform/envutil"
	"github.com/avelari/workbase-backend/internal/platform/logger"
	"github.com/avelari/workbase-backend/internal/syncagent"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	url := envutil.Str("SYNC_URL", "ws://localhost:8080/api/sync")
	token := envutil.Str("SYNC_TOKEN", "")
	if token == "" {
		log.Error("SYNC_TOKEN is required")
		os.Exit(1)
	}

	cache := syncagent.NewQueryCache()
	agent := syncagent.New(syncagent.Config{
		URL:            url,
		Identity:       token,
		ReconnectDelay: envutil.Duration("SYNC_RECONNECT_DELAY", 3*time.Second),
		PingInterval:   envutil.Duration("SYNC_PING_INTERVAL", 30*time.Second),
	}, cache, log)

	agent.OnStateChange("printer", func(connected bool) {
		fmt.Printf("connected=%v\n", connected)
	})
	agent.OnNotification("printer", func(n syncagent.Notification) {
		fmt.Printf("notification %s: %s - %s\n", n.Kind, n.Title, n.Message)
	})

	if err := agent.Start(); err != nil {
		log.Error("Agent start failed", "error", err)
		os.Exit(1)
	}

	// Report which cached queries went stale once a second.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-ticker.C:
			for _, key := range cache.StaleKeys() {
				fmt.Printf("stale: %s\n", key)
				cache.MarkFresh(key)
			}
		case <-sig:
			agent.Stop()
			return
		}
	}
}
