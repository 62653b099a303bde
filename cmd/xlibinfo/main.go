// Command xlibinfo talks to an X server through xlib and prints what it
// learns: the connection setup, atoms, extensions and events.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
