package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/kestrelworks/repowarden/internal/config"
)

// probeTimeout bounds the whole liveness round trip.
const probeTimeout = 2 * time.Second

func main() {
	os.Exit(check())
}

func check() int {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	url := "http://" + probeAddr(os.Getenv("REPOWARDEN_LISTEN_ADDR")) + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 1
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

// probeAddr resolves the address to probe. The service may bind 0.0.0.0 in a
// container; the probe runs inside the same container, so it dials loopback.
func probeAddr(raw string) string {
	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return config.DefaultListenAddr
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
