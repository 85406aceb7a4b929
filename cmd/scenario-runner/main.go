// cmd/scenario-runner/main.go
package main

import (
	"os"

	"planscape-scenarios/cmd/scenario-runner/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
