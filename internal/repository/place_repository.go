package repository

import (
	"context"
	"iter"
	"math"
	"time"

	"github.com/mehrbod2002/masjidmap/internal/geo"
	"github.com/mehrbod2002/masjidmap/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PlaceRepository interface {
	SavePlace(ctx context.Context, place *models.Place) error
	GetPlaceByID(ctx context.Context, id primitive.ObjectID) (*models.Place, error)
	GetAllPlaces(ctx context.Context) ([]*models.Place, error)
	UpdatePlace(ctx context.Context, place *models.Place) error
	DeletePlace(ctx context.Context, id primitive.ObjectID) error
	// Candidates streams a superset of the places within radius meters of center.
	// Iteration stops at the first error.
	Candidates(ctx context.Context, center geo.Point, radius float64) iter.Seq2[*models.Place, error]
}

// candidateSlack widens the index prefilter so that the exact distance check
// downstream never loses a place sitting on the boundary.
const candidateSlack = 1e-6

type MongoPlaceRepository struct {
	collection *mongo.Collection
}

func NewPlaceRepository(client *mongo.Client, dbName, collectionName string) *MongoPlaceRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoPlaceRepository{collection: collection}
}

func (r *MongoPlaceRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	return classify(err, "create place indexes")
}

func (r *MongoPlaceRepository) SavePlace(ctx context.Context, place *models.Place) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	place.ID = primitive.NewObjectID()
	place.CreatedAt = time.Now().UTC()
	place.UpdatedAt = place.CreatedAt
	_, err := r.collection.InsertOne(ctx, place)
	return classify(err, "insert place")
}

func (r *MongoPlaceRepository) GetPlaceByID(ctx context.Context, id primitive.ObjectID) (*models.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var place models.Place
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&place)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find place")
	}
	return &place, nil
}

func (r *MongoPlaceRepository) GetAllPlaces(ctx context.Context) ([]*models.Place, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	places := []*models.Place{}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, classify(err, "find places")
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &places); err != nil {
		return nil, classify(err, "decode places")
	}
	return places, nil
}

func (r *MongoPlaceRepository) UpdatePlace(ctx context.Context, place *models.Place) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	place.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"name":         place.Name,
			"address":      place.Address,
			"location":     place.Location,
			"phone_number": place.PhoneNumber,
			"description":  place.Description,
			"prayer_times": place.PrayerTimes,
			"updated_at":   place.UpdatedAt,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": place.ID}, update)
	if err != nil {
		return classify(err, "update place")
	}
	if result.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

func (r *MongoPlaceRepository) DeletePlace(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return classify(err, "delete place")
	}
	if result.DeletedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

func (r *MongoPlaceRepository) Candidates(ctx context.Context, center geo.Point, radius float64) iter.Seq2[*models.Place, error] {
	return func(yield func(*models.Place, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()

		cursor, err := r.collection.Find(ctx, centerSphereFilter(center, radius))
		if err != nil {
			yield(nil, classify(err, "find nearby places"))
			return
		}
		defer cursor.Close(ctx)
		for cursor.Next(ctx) {
			var place models.Place
			if err := cursor.Decode(&place); err != nil {
				yield(nil, classify(err, "decode place"))
				return
			}
			if !yield(&place, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, classify(err, "iterate nearby places"))
		}
	}
}

func centerSphereFilter(center geo.Point, radius float64) bson.M {
	radians := radius/geo.EarthRadiusMeters + candidateSlack
	if radians >= math.Pi {
		return bson.M{}
	}
	return bson.M{
		"location": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{center.Longitude, center.Latitude}, radians},
			},
		},
	}
}
