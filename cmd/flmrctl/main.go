package main

import "github.com/kbvqa/flmrctl/cmd"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main start the flmrctl cli
func main() {
	cmd.Run(version, commit, date)
}
