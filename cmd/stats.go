package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	mongodb "mistake-service/internal/database/mongo"
	"mistake-service/internal/event"
	"mistake-service/internal/repository"
	"mistake-service/internal/service"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print mistake statistics for one user as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")

		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		client, db, err := mongodb.Connect(cfg.MongoDB, log)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer mongodb.Disconnect(client, log)

		// read-only, nothing to publish
		publisher, _ := event.NewEventPublisher("", cfg.RabbitMQ.EventsExchange, log)
		tracker := service.NewMistakeTracker(repository.NewMistakeRepository(db), publisher, trackerConfig(cfg), log)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		stats, err := tracker.GetStatistics(ctx, userID)
		if err != nil {
			return fmt.Errorf("get statistics: %w", err)
		}

		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("user", "", "user whose statistics are printed")
	_ = statsCmd.MarkFlagRequired("user")
}
