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

type ChangeRequestRepository interface {
	SaveChangeRequest(ctx context.Context, request *models.ChangeRequest) error
	GetChangeRequestByID(ctx context.Context, id primitive.ObjectID) (*models.ChangeRequest, error)
	// ListChangeRequests returns matching requests, newest first.
	ListChangeRequests(ctx context.Context, filter models.RequestFilter) ([]*models.ChangeRequest, error)
	// ResolveChangeRequest records a terminal status on a pending request; ErrNoMatch otherwise.
	ResolveChangeRequest(ctx context.Context, id primitive.ObjectID, res models.Resolution) error
	// DeletePendingChangeRequest removes a pending request owned by requester; ErrNoMatch otherwise.
	DeletePendingChangeRequest(ctx context.Context, id, requester primitive.ObjectID) error
}

type MongoChangeRequestRepository struct {
	collection *mongo.Collection
}

func NewChangeRequestRepository(client *mongo.Client, dbName, collectionName string) *MongoChangeRequestRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoChangeRequestRepository{collection: collection}
}

func (r *MongoChangeRequestRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "requested_by", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return classify(err, "create change request indexes")
}

func (r *MongoChangeRequestRepository) SaveChangeRequest(ctx context.Context, request *models.ChangeRequest) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	request.ID = primitive.NewObjectID()
	request.Status = models.StatusPending
	request.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, request)
	return classify(err, "insert change request")
}

func (r *MongoChangeRequestRepository) GetChangeRequestByID(ctx context.Context, id primitive.ObjectID) (*models.ChangeRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var request models.ChangeRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find change request")
	}
	return &request, nil
}

func (r *MongoChangeRequestRepository) ListChangeRequests(ctx context.Context, filter models.RequestFilter) ([]*models.ChangeRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Status != "" && filter.Status != models.StatusAll {
		query["status"] = filter.Status
	}
	if filter.RequestedBy != nil {
		query["requested_by"] = *filter.RequestedBy
	}

	requests := []*models.ChangeRequest{}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, classify(err, "find change requests")
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, classify(err, "decode change requests")
	}
	return requests, nil
}

func (r *MongoChangeRequestRepository) ResolveChangeRequest(ctx context.Context, id primitive.ObjectID, res models.Resolution) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":         res.Status,
			"processed_by":   res.ProcessedBy,
			"admin_response": res.AdminResponse,
			"processed_at":   res.ProcessedAt,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": models.StatusPending}, update)
	if err != nil {
		return classify(err, "resolve change request")
	}
	if result.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

func (r *MongoChangeRequestRepository) DeletePendingChangeRequest(ctx context.Context, id, requester primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "requested_by": requester, "status": models.StatusPending}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return classify(err, "delete change request")
	}
	if result.DeletedCount == 0 {
		return ErrNoMatch
	}
	return nil
}
