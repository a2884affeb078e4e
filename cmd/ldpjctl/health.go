package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the daemon's latest health report",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := newRequest("/health")
		if err != nil {
			return err
		}
		resp, err := clientWithTimeout().Do(req)
		if err != nil {
			return fmt.Errorf("ldpjctl: requesting /health: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != 200 {
			fmt.Fprintf(os.Stderr, "ldpjd reported unhealthy (status %d): %s\n", resp.StatusCode, body)
			os.Exit(1)
		}

		var pretty interface{}
		if err := json.Unmarshal(body, &pretty); err != nil {
			fmt.Println(string(body))
			return nil
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}
