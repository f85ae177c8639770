package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	mongodb "mistake-service/internal/database/mongo"
	"mistake-service/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MongoDB indexes used for deduplication and due queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}

		client, db, err := mongodb.Connect(cfg.MongoDB, log)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer mongodb.Disconnect(client, log)

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if err := createIndexes(ctx, repository.NewMistakeRepository(db), repository.NewSessionRepository(db)); err != nil {
			return fmt.Errorf("create indexes: %w", err)
		}
		log.Info("database indexes created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
