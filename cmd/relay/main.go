package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"chatcore/internal/app"
)

func main() {
	configPath := flag.String("config", "", "config file")
	listen := flag.String("listen", "", "listen address (overrides server.listen)")
	flag.Parse()

	cfg, err := app.LoadFromPath(*configPath)
	if err != nil {
		logrus.Fatalf("Error loading config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("Error creating logger: %v", err)
	}

	backend, closeBackend, err := app.NewBackend(context.Background(), cfg.Server)
	if err != nil {
		logger.Fatalf("Error opening backend: %v", err)
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Errorf("Error closing backend: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	srv, err := app.NewRelayServer(backend, logger, reg)
	if err != nil {
		logger.Fatalf("Error registering metrics: %v", err)
	}
	defer srv.Close()

	logger.Infof("relay listening on %s (backend %s)", cfg.Server.Listen, cfg.Server.Backend)
	if err := http.ListenAndServe(cfg.Server.Listen, srv); err != nil {
		logger.Fatalf("Error starting server: %v", err)
	}
}
