// Command caat runs computer-assisted audit tests (duplicates, unusual
// amounts, reconciliation and Benford's law) over csv, Excel and dBase files.
package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/pivoten/caat/internal/logger"
)

func main() {
	defer logger.RecoverPanic("Main")

	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		os.Stderr.WriteString(err.Error() + "\n")
		logger.Close()
		os.Exit(1)
	}
}
