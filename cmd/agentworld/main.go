// Command agentworld hosts a chat world on the terminal.
//
//	agentworld init                  write a default agentworld.yaml
//	agentworld chat                  interactive chat with the configured agents
//	agentworld send "@alice hi"      send one message and print the cascade
//	agentworld view --agent alice    print the conversation from memory
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
