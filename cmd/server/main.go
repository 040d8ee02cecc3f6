package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/config"
	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	dev := flag.Bool("dev", false, "Development mode (colored logs, debug level)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	var log *logging.Logger
	if cfg.Logging.Development {
		log = logging.NewDevelopment()
	} else {
		log = logging.NewDefault()
	}
	defer log.Sync()

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.Fatal("failed to create server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Info("shutting down")
		if err := srv.Close(); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		log.Fatal("server error", zap.Error(err))
	}
}
