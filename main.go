// heapsizegen reads Go types annotated with heapsize directives and struct
// tags and writes HeapSize methods reporting the bytes each value owns on the
// heap.
//
// Usage:
//
//	//go:generate go run github.com/mlwelles/heapsizegen [flags]
//
// When invoked via go:generate (the typical case), it uses the current working
// directory as the target package.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "heapsizegen: %v\n", err)
		}
		os.Exit(1)
	}
}
