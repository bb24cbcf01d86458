package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"automated-kingdom/server/internal/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Options{ConfigPath: configPath}); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}
