// deployctl lists the configured deployments and drives them from the
// command line.
//
// Usage:
//
//	deployctl list
//	deployctl chat --deployment lorem --model lorem-fast "Tell me something interesting"
//	deployctl search-queries --deployment anthropic "What changed in Go 1.25?"
//	deployctl rerank --deployment lorem "go streams" "first document" "second document"
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
