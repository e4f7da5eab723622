// Command verifactu validates, chains and submits invoice records to the
// VeriFactu service and serves the same pipeline over HTTP.
package main

import (
	"fmt"
	"os"

	_ "time/tzdata" // Europe/Madrid must resolve on hosts without zoneinfo

	"github.com/juliansprt/VeriFactu/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
