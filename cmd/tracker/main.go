// Command tracker persists the sample catalog through the change-tracking
// engine.
package main

import (
	"fmt"
	"os"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tracker:", err)
		os.Exit(exitCode(err))
	}
}
