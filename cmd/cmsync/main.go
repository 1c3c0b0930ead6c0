// Command cmsync reconciles a content store with a declaration.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cmsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
