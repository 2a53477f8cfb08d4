package main

import "os"

// main hands off to the cobra command tree. Business logic lives in
// internal/forecast; this package only wires dependencies.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
