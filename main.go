package main

import (
	"fmt"
	"os"

	"github.com/temirov/issuemigrate/cmd/cli"
)

const (
	exitErrorTemplateConstant = "issue-migrate: %v\n"
	failureExitCodeConstant   = 1
)

func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(failureExitCodeConstant)
	}
}
