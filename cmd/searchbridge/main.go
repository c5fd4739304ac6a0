package main

import (
	"github.com/joho/godotenv"

	sbcmd "github.com/modelsurf/searchbridge/cmd"
)

// Filled at build time with the -X linker flag.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Load .env if present (silently ignore if it doesn't exist).
	_ = godotenv.Load()
	sbcmd.SetVersionInfo(version, commit)
	sbcmd.Execute()
}
