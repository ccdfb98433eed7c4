// Package main is the intent-solver process entry point.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/intent-solver/system/bootstrap"
)

func main() {
	log := logrus.WithField("app", "intent-solver")

	// .env is optional; local development convenience only, production
	// deployments set SOLVER_* directly in the process environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("load .env")
	}

	cfg, err := bootstrap.LoadConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	sys, err := bootstrap.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("wire solver")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sys.Start(ctx); err != nil {
		log.WithError(err).Fatal("start solver")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	sys.Stop()
}
