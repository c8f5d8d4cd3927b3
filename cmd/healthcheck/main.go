// Command healthcheck probes /healthz of a running bot over its socket or address
// and exits non-zero when the bot is not healthy. It is meant for container HEALTHCHECKs.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/SoulShadow8326/intrasudo25/discordbot/config"
	"github.com/SoulShadow8326/intrasudo25/discordbot/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	client, base := server.LocalClient(cfg.ClientTarget(), 3*time.Second)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, base+"/healthz", nil)
	if err != nil {
		os.Exit(1)
	}
	resp, err := client.Do(req)
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
