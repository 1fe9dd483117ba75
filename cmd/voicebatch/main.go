// main package for the voicebatch command.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/book-expert/voicebatch/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCmd(cli.Streams{Out: os.Stdout, Err: os.Stderr})

	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
