// Command ldpjctl is the operator CLI for a running ldpjd daemon: it
// queries the read API for health and status, and can export persisted
// test records to CSV directly from the record store.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	addr     string
	apiKey   string
	timeoutS float64
)

var rootCmd = &cobra.Command{
	Use:   "ldpjctl",
	Short: "Operator CLI for the ldpjd edge daemon",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "ldpjd HTTP API base address")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "X-API-Key header value, if the API requires one")
	rootCmd.PersistentFlags().Float64Var(&timeoutS, "timeout", 5, "request timeout in seconds")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRequest builds a GET request against path under addr, attaching the
// API key header when one is configured.
func newRequest(path string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, addr+path, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return req, nil
}

func clientWithTimeout() *http.Client {
	return &http.Client{Timeout: time.Duration(timeoutS * float64(time.Second))}
}
