package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shpitdev/email-pattern-finder/internal/mockreacher"
)

func main() {
	addr := defaultString("MOCK_REACHER_ADDR", ":8080")
	mailboxesPath := defaultString("MOCK_REACHER_MAILBOXES", "")
	catchAll := defaultString("MOCK_REACHER_CATCH_ALL_DOMAINS", "")
	apiKey := defaultString("MOCK_REACHER_API_KEY", "")

	fs := flag.NewFlagSet("mock-reacher", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&mailboxesPath, "mailboxes", mailboxesPath, "CSV of address,status rows treated as existing mailboxes")
	fs.StringVar(&catchAll, "catch-all", catchAll, "Comma-separated domains that accept every address (also supports env: MOCK_REACHER_CATCH_ALL_DOMAINS)")
	fs.StringVar(&apiKey, "api-key", apiKey, "Require this bearer token when set")
	_ = fs.Parse(os.Args[1:])

	srv := mockreacher.New()
	srv.RequireBearerToken(apiKey)
	for _, d := range splitCSV(catchAll) {
		srv.SetCatchAll(d)
	}
	loaded := 0
	if mailboxesPath != "" {
		f, err := os.Open(mailboxesPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "open mailboxes: %v\n", err)
			os.Exit(1)
		}
		loaded, err = srv.LoadMailboxes(f)
		_ = f.Close()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-reacher listening on %s (mailboxes=%d catch-all=%q)\n", addr, loaded, catchAll)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
