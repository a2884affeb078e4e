package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diagCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a summary of the daemon's current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchAndPrint("/status")
	},
}

// diagCmd prints the same status payload with full per-cabin diagnostics;
// it exists as a separate entry point because operators reach for "diag"
// when chasing a specific cabin rather than a pass/fail read.
var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Print full per-cabin diagnostics from the processing loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchAndPrint("/status")
	},
}

func fetchAndPrint(path string) error {
	req, err := newRequest(path)
	if err != nil {
		return err
	}
	resp, err := clientWithTimeout().Do(req)
	if err != nil {
		return fmt.Errorf("ldpjctl: requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}
