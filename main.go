// Package main provides the mdlinkcheck CLI entrypoint.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/lukemcguire/mdlinkcheck/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, cli.ErrLinksFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
