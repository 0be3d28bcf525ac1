// Command wikigr drives WikiGR's expansion orchestrator and retrieval
// agent from the command line.
//
// Usage:
//
//	wikigr expand --config DIR [--watch]
//	wikigr query --config DIR "question text"
//
// DIR is the directory searched for wikigr.yaml.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "expand":
		err = runExpand(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "wikigr: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wikigr <expand|query> [flags]")
}
