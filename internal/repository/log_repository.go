package repository

import (
	"context"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LogRepository interface {
	SaveLog(ctx context.Context, log *models.LogEntry) error
	GetAllLogs(ctx context.Context, page, limit int) ([]*models.LogEntry, error)
	GetLogsByActor(ctx context.Context, actorID primitive.ObjectID, page, limit int) ([]*models.LogEntry, error)
}

type MongoLogRepository struct {
	collection *mongo.Collection
}

func NewLogRepository(client *mongo.Client, dbName, collectionName string) *MongoLogRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoLogRepository{collection: collection}
}

func (r *MongoLogRepository) SaveLog(ctx context.Context, log *models.LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.ID = primitive.NewObjectID()
	log.Timestamp = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, log)
	return classify(err, "insert log")
}

func (r *MongoLogRepository) GetAllLogs(ctx context.Context, page, limit int) ([]*models.LogEntry, error) {
	return r.find(ctx, bson.M{}, page, limit)
}

func (r *MongoLogRepository) GetLogsByActor(ctx context.Context, actorID primitive.ObjectID, page, limit int) ([]*models.LogEntry, error) {
	return r.find(ctx, bson.M{"actor_id": actorID}, page, limit)
}

func (r *MongoLogRepository) find(ctx context.Context, filter bson.M, page, limit int) ([]*models.LogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	logs := []*models.LogEntry{}
	skip := (page - 1) * limit
	findOptions := options.Find().SetSort(bson.M{"timestamp": -1}).SetSkip(int64(skip)).SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, classify(err, "find logs")
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, classify(err, "decode logs")
	}
	return logs, nil
}
