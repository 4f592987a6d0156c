// Command oisctl parses, validates, and loads the Dallas officer-involved
// shooting dataset from the command line.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
