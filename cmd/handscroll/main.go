// Command handscroll drives a scroll value with hand gestures.
//
// Usage:
//
//	handscroll run [--mock] [--preset low] [--port 8080]
//	handscroll preload
//	handscroll map 0.2 0.5 0.8
package main

import (
	"fmt"
	"os"

	"github.com/teslashibe/go-handscroll/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
