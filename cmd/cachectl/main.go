// Command cachectl runs cache administration tasks against the configured
// backend without going through the API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/psdstocks-cloud/creo-cache/internal/app/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(openCore)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "cachectl:", err)
		stop()
		os.Exit(1)
	}
}

func openCore(ctx context.Context, configPath string) (*bootstrap.Core, error) {
	cfg, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewCore(ctx, cfg, bootstrap.NewLogger(cfg, os.Stderr))
}
