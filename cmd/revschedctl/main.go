// revschedctl normalizes extraction runs from files without a server.
//
// Usage:
//
//	revschedctl normalize --run a.json --run b.json [--full]
//	revschedctl match "SEO Pro"
//	revschedctl score --run a.json --run b.json
//	revschedctl version
package main

import (
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
