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

type AccountRepository interface {
	SaveAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAllAccounts(ctx context.Context) ([]*models.Account, error)
	GetAccountsByRole(ctx context.Context, role models.Role) ([]*models.Account, error)
	// UpdateRole moves an account from one role to another; ErrNoMatch if its role is no longer from.
	UpdateRole(ctx context.Context, id primitive.ObjectID, from, to models.Role) error
}

type MongoAccountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(client *mongo.Client, dbName, collectionName string) *MongoAccountRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoAccountRepository{collection: collection}
}

func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})
	return classify(err, "create account indexes")
}

func (r *MongoAccountRepository) SaveAccount(ctx context.Context, account *models.Account) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	account.ID = primitive.NewObjectID()
	account.Email = models.NormalizeEmail(account.Email)
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	_, err := r.collection.InsertOne(ctx, account)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return classify(err, "insert account")
}

func (r *MongoAccountRepository) GetAccountByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoAccountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var account models.Account
	err := r.collection.FindOne(ctx, filter).Decode(&account)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find account")
	}
	return &account, nil
}

func (r *MongoAccountRepository) GetAllAccounts(ctx context.Context) ([]*models.Account, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoAccountRepository) GetAccountsByRole(ctx context.Context, role models.Role) ([]*models.Account, error) {
	return r.find(ctx, bson.M{"role": role})
}

func (r *MongoAccountRepository) find(ctx context.Context, filter bson.M) ([]*models.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	accounts := []*models.Account{}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err, "find accounts")
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, classify(err, "decode accounts")
	}
	return accounts, nil
}

func (r *MongoAccountRepository) UpdateRole(ctx context.Context, id primitive.ObjectID, from, to models.Role) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"role": to, "updated_at": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "role": from}, update)
	if err != nil {
		return classify(err, "update account role")
	}
	if result.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}
