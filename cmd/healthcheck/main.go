// Command healthcheck checks the creatorhub health endpoint and exits 0 when
// the service answers 200. It is meant for container HEALTHCHECK directives.
//
// CREATORHUB_HEALTHCHECK_URL selects the full URL to request. Without it the
// target is derived from CREATORHUB_LISTEN_ADDR, with bind-all hosts mapped to
// loopback. CREATORHUB_HEALTHCHECK_TIMEOUT bounds the request (default 2s).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

const (
	healthPath     = "/api/v1/health"
	defaultAddr    = "127.0.0.1:8080"
	defaultTimeout = 2 * time.Second
)

func main() {
	if err := check(targetURL(os.Getenv), checkTimeout(os.Getenv)); err != nil {
		fmt.Fprintln(os.Stderr, "healthcheck:", err)
		os.Exit(1)
	}
}

func check(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return nil
}

func targetURL(getenv func(string) string) string {
	if u := getenv("CREATORHUB_HEALTHCHECK_URL"); u != "" {
		return u
	}
	return "http://" + loopbackAddr(getenv("CREATORHUB_LISTEN_ADDR")) + healthPath
}

func checkTimeout(getenv func(string) string) time.Duration {
	d, err := time.ParseDuration(getenv("CREATORHUB_HEALTHCHECK_TIMEOUT"))
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}

// loopbackAddr maps a listen address to one reachable from inside the same
// container.
func loopbackAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return defaultAddr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
