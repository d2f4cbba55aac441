package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// cmdContext returns a context cancelled on SIGINT/SIGTERM. The
// orchestrator observes the cancellation at its next poll tick and
// tears down every in-flight dump.
func cmdContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()
	return ctx
}
