// Command boardctl edits the user board from a terminal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/user_board/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		cli.NewPrinter(os.Stderr).Error("%v", err)
		stop()
		os.Exit(1)
	}
}
