package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	authcmd "github.com/louisbranch/shopkeeper/internal/cmd/auth"
	"github.com/louisbranch/shopkeeper/internal/platform/config"
)

func main() {
	cfg, err := authcmd.ParseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := authcmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
