package cli

import (
	"context"
	"net"
	"net/http"

	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	rootCmd := &cobra.Command{
		Use:   "bgpscanctl",
		Short: "Admin CLI for bgpscand's scan-time and scan-state surface.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var sock string
	rootCmd.PersistentFlags().StringVar(&sock, "sock", "/var/run/bgpscand/bgpscand.sock", "path to bgpscand's admin unix socket")

	rootCmd.AddCommand(
		newScanTimeCmd().Command(),
		newShowCmd().Command(),
	)

	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

// adminClient is an HTTP client that dials bgpscand's admin unix socket
// instead of TCP; the URL host is ignored by the custom DialContext.
func adminClient(sock string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", sock)
			},
		},
	}
}
