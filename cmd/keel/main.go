package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danpasecinic/keel/internal/cli"
)

// version is set at build time with -ldflags.
var version = "dev"

func main() {
	err := cli.NewRootCommand(version).ExecuteContext(context.Background())
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
