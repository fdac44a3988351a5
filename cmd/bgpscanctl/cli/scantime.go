package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

type ScanTimeCmd struct{}

func newScanTimeCmd() *ScanTimeCmd {
	return &ScanTimeCmd{}
}

func (c *ScanTimeCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan-time",
		Short: "Get, set, or reset the scan interval",
	}

	cmd.AddCommand(c.getCommand(), c.setCommand(), c.resetCommand())
	return cmd
}

func (c *ScanTimeCmd) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current scan and import intervals",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := cmd.Root().PersistentFlags().GetString("sock")
			if err != nil {
				return fmt.Errorf("failed to get sock flag: %w", err)
			}
			resp, err := adminClient(sock).Get("http://bgpscand/scan-time")
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			var got map[string]int
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			fmt.Printf("scan interval: %ds\nimport interval: %ds\n", got["scan_interval_seconds"], got["import_interval_seconds"])
			return nil
		},
	}
}

func (c *ScanTimeCmd) setCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <5-60>",
		Short: "Set the scan interval in seconds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := cmd.Root().PersistentFlags().GetString("sock")
			if err != nil {
				return fmt.Errorf("failed to get sock flag: %w", err)
			}
			var seconds int
			if _, err := fmt.Sscanf(args[0], "%d", &seconds); err != nil {
				return fmt.Errorf("invalid seconds value %q: %w", args[0], err)
			}

			body, err := json.Marshal(map[string]int{"seconds": seconds})
			if err != nil {
				return fmt.Errorf("failed to encode request: %w", err)
			}
			req, err := http.NewRequest(http.MethodPut, "http://bgpscand/scan-time", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to build request: %w", err)
			}
			resp, err := adminClient(sock).Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("bgpscand rejected scan-time %ds (status %d)", seconds, resp.StatusCode)
			}
			fmt.Printf("scan interval set to %ds\n", seconds)
			return nil
		},
	}
}

func (c *ScanTimeCmd) resetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the scan interval to its default",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := cmd.Root().PersistentFlags().GetString("sock")
			if err != nil {
				return fmt.Errorf("failed to get sock flag: %w", err)
			}
			req, err := http.NewRequest(http.MethodDelete, "http://bgpscand/scan-time", nil)
			if err != nil {
				return fmt.Errorf("failed to build request: %w", err)
			}
			resp, err := adminClient(sock).Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()
			fmt.Println("scan interval reset to default")
			return nil
		},
	}
}
