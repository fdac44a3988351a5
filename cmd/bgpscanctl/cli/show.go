package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type ScanSnapshot struct {
	AFI      string `json:"afi"`
	Entries  int    `json:"entries"`
	Desynced int    `json:"desynced"`
	Detail   []struct {
		Prefix string `json:"prefix"`
		Valid  bool   `json:"valid"`
	} `json:"detail,omitempty"`
}

type ShowCmd struct{}

func newShowCmd() *ShowCmd {
	return &ShowCmd{}
}

func (c *ShowCmd) Command() *cobra.Command {
	var detail bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show ip bgp scan [--detail] equivalent",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := cmd.Root().PersistentFlags().GetString("sock")
			if err != nil {
				return fmt.Errorf("failed to get sock flag: %w", err)
			}
			url := "http://bgpscand/scan"
			if detail {
				url += "?detail=1"
			}
			resp, err := adminClient(sock).Get(url)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			var snaps []ScanSnapshot
			if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			for _, s := range snaps {
				fmt.Printf("%s: %d entries, %d desynced\n", s.AFI, s.Entries, s.Desynced)
				for _, e := range s.Detail {
					fmt.Printf("  %-20s valid=%v\n", e.Prefix, e.Valid)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detail, "detail", false, "show per-prefix detail")
	return cmd
}
