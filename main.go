// main is the entry point for the tnrpipe CLI.
package main

import (
	"os"

	"github.com/huangsam/tnrpipe/cmd"
	"github.com/huangsam/tnrpipe/internal/contract"
)

func main() {
	err := cmd.Execute()
	if shutdownErr := cmd.Shutdown(); shutdownErr != nil {
		contract.LogWarn("Shutdown", shutdownErr)
	}
	if err != nil {
		contract.LogWarn("Command failed", err)
		os.Exit(1)
	}
}
