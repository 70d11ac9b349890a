// Command gogate drives a goGate session store from the terminal and serves
// the HTML demo.
//
//	gogate login --email alice@example.com --password secret
//	gogate status --route /dashboard
//	gogate serve --storage memory-redis --addr :8080
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goGate/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gogate:", err)
		stop()
		os.Exit(1)
	}
}
