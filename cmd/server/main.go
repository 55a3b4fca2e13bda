package main

import (
	"fmt"
	"log"

	"github.com/levinOo/go-monitoring-core/internal/config"
	"github.com/levinOo/go-monitoring-core/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return service.Serve(cfg)
}
