// Command powertest runs the Bluetooth suspend/resume call sequences
// against a device under test and serves the results over HTTP.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errCasesFailed) {
			fmt.Fprintln(os.Stderr, "powertest:", err)
		}
		os.Exit(1)
	}
}
