// Command bgpscanctl is the admin CLI for bgpscand: it talks JSON over
// the daemon's unix socket to read and change the scan-time/import-time
// configuration and to print a show-scan snapshot.
package main

import (
	"os"

	"github.com/bgpscand/bgpscand/cmd/bgpscanctl/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
