package main

import (
	"fmt"
	"os"

	"github.com/icarus-itcs/lazyflutter/cmd/lazyflutter"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := lazyflutter.Execute(version, commit, date); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
