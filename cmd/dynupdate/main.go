package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// dynupdate is a minimal dyndns2 client for cron jobs and router scripts.
// It prints the server's answer verbatim and exits non-zero on anything
// other than a 200.
func main() {
	server := flag.String("server", "http://127.0.0.1:8245", "base URL of the dyndnsd server")
	user := flag.String("user", "", "username for basic auth")
	password := flag.String("password", "", "password for basic auth (falls back to DYNUPDATE_PASSWORD)")
	hostname := flag.String("hostname", "", "hostname to update, comma separated for several")
	myip := flag.String("myip", "", "address literal to bind; empty lets the server derive one")
	myip6 := flag.String("myip6", "", "IPv6 literal to bind alongside -myip")
	offline := flag.Bool("offline", false, "withdraw the hostnames instead of updating them")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	if *hostname == "" {
		log.Fatalf("-hostname is required")
	}

	pass := *password
	if pass == "" {
		pass = strings.TrimSpace(os.Getenv("DYNUPDATE_PASSWORD"))
	}
	if *user == "" || pass == "" {
		log.Fatalf("-user and a password are required")
	}

	q := url.Values{}
	q.Set("hostname", *hostname)
	if *myip != "" {
		q.Set("myip", *myip)
	}
	if *myip6 != "" {
		q.Set("myip6", *myip6)
	}
	if *offline {
		q.Set("offline", "YES")
	}

	endpoint := strings.TrimRight(strings.TrimSpace(*server), "/") + "/nic/update?" + q.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		log.Fatalf("build request failed: %v", err)
	}
	req.SetBasicAuth(*user, pass)

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("update request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if answer := strings.TrimSpace(string(body)); answer != "" {
		fmt.Println(answer)
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "server answered %d\n", resp.StatusCode)
		os.Exit(1)
	}
}
