// Command plexify is the entrypoint for the distributed media transcoding
// CLI. Coordination between workers happens entirely through atomic
// filesystem operations on a shared queue directory; see internal/queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/plexify-media/plexify/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "plexify: %v\n", err)
		os.Exit(1)
	}
}
