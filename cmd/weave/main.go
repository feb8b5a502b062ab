// Command weave inspects weave projects and running apps.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/weave/cmd/weave/cmd"
)

func main() {
	if err := cmd.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
