package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thushan/chillm/internal/app"
	"github.com/thushan/chillm/internal/core/domain"
)

func main() {
	startTime := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(startTime).Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "chillm: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode separates configuration mistakes from runtime failures for scripts.
func exitCode(err error) int {
	var ce *domain.ConfigError
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}
