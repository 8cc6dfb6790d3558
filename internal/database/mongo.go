package database

import (
	"context"
	"time"

	"foodmed/config"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewMongo connects to MongoDB and returns the chat database. Connection
// attempts are retried MaxRetry times while ctx is alive.
func NewMongo(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	if cfg.URI == "" {
		return nil, nil, errors.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxPoolSize))
	}
	retries := cfg.MaxRetry
	if retries <= 0 {
		retries = 1
	}

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < retries; i++ {
		cli, err = connectMongo(ctx, opts)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Second / 2)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to connect to MongoDB at %s", cfg.URI)
	}
	return cli, cli.Database(cfg.Database), nil
}

func connectMongo(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}
