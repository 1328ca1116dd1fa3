// Command trackreview inspects tracker output against ground truth: it lists
// datasets, renders plots to the terminal or to files, manages the SQLite
// dataset store and serves the interactive viewer.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
