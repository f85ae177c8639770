package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mistake-service/internal/config"
)

// Connect opens a client and returns the configured database.
// A failed ping is logged but does not fail startup; the driver reconnects lazily.
func Connect(cfg config.MongoDBConfig, log logrus.FieldLogger) (*mongo.Client, *mongo.Database, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(serverAPI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetTimeout(cfg.Timeout).
		SetCompressors([]string{"zstd", "snappy", "zlib"}).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		log.WithError(err).Warn("could not verify MongoDB connection")
	} else {
		log.Info("successfully connected to MongoDB")
	}

	log.WithFields(logrus.Fields{
		"database":      cfg.Database,
		"max_pool_size": cfg.MaxPoolSize,
	}).Info("MongoDB initialized")

	return client, client.Database(cfg.Database), nil
}

func Disconnect(client *mongo.Client, log logrus.FieldLogger) {
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		log.WithError(err).Error("error disconnecting from MongoDB")
		return
	}
	log.Info("successfully disconnected from MongoDB")
}

// IsConnected pings the server with a short deadline
func IsConnected(ctx context.Context, client *mongo.Client) bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx, nil) == nil
}
