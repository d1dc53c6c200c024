package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/config"
	"github.com/mehrbod2002/masjidmap/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	accountsCollection = "accounts"
	placesCollection   = "masjids"
	requestsCollection = "requests"
	logsCollection     = "logs"
)

type stores struct {
	accounts repository.AccountRepository
	places   repository.PlaceRepository
	requests repository.ChangeRequestRepository
	logs     repository.LogRepository
	tx       repository.Transactor
	close    func(context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return &stores{
			accounts: repository.NewMemoryAccountRepository(),
			places:   repository.NewMemoryPlaceRepository(),
			requests: repository.NewMemoryChangeRequestRepository(),
			logs:     repository.NewMemoryLogRepository(),
			tx:       repository.NewMemoryTransactor(),
			close:    func(context.Context) error { return nil },
		}, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	accounts := repository.NewAccountRepository(client, cfg.MongoDB, accountsCollection)
	places := repository.NewPlaceRepository(client, cfg.MongoDB, placesCollection)
	requests := repository.NewChangeRequestRepository(client, cfg.MongoDB, requestsCollection)
	for _, idx := range []interface {
		EnsureIndexes(context.Context) error
	}{accounts, places, requests} {
		if err := idx.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
	}
	logger.WithField("database", cfg.MongoDB).Info("connected to MongoDB")

	return &stores{
		accounts: accounts,
		places:   places,
		requests: requests,
		logs:     repository.NewLogRepository(client, cfg.MongoDB, logsCollection),
		tx:       repository.NewMongoTransactor(client),
		close:    client.Disconnect,
	}, nil
}
