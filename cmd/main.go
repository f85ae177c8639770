package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mistake-service/internal/config"
	"mistake-service/internal/logger"
	"mistake-service/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "mistake-service",
	Short: "Tracks learner mistakes and schedules them for spaced practice",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger shared by every command
func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}

func trackerConfig(cfg *config.Config) service.TrackerConfig {
	return service.TrackerConfig{
		SignatureMode: cfg.Tracker.SignatureMode,
		DefaultLimit:  cfg.Tracker.DefaultLimit,
		MaxLimit:      cfg.Tracker.MaxLimit,
	}
}
