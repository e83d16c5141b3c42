/*
Command timeship serves a local directory tree, and every snapshot
version of it exposed by the filesystem, over a read-only HTTP API.

Usage:

  $ timeship [<flags>]

Use 'timeship --help' to see more details.
*/
package main

import (
	"fmt"
	"os"

	"github.com/timeshipd/timeship/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
