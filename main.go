package main

import "github.com/fiscal-tracker/fiscal-engine/cmd"

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cmd.Execute(Version)
}
