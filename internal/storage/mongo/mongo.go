package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"media_tracker/internal/models"
	"media_tracker/internal/storage"
)

const (
	usersCollection = "users"
	mediaCollection = "media"

	disconnectTimeout = 5 * time.Second
)

type MongoRepo struct {
	client *mongo.Client
	users  *mongo.Collection
	media  *mongo.Collection
}

func New(ctx context.Context, uri, dbName string) (*MongoRepo, error) {
	const op = "storage.mongo.New"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	db := client.Database(dbName)

	r := &MongoRepo{
		client: client,
		users:  db.Collection(usersCollection),
		media:  db.Collection(mediaCollection),
	}

	if err := r.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return r, nil
}

// ensureIndexes creates the unique email index the duplicate-signup check relies on,
// plus lookup indexes for verification tokens and media owners.
func (r *MongoRepo) ensureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "verification_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = r.media.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create media indexes: %w", err)
	}

	return nil
}

func (r *MongoRepo) SaveUser(ctx context.Context, u models.User) error {
	const op = "storage.mongo.SaveUser"

	if _, err := r.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *MongoRepo) User(ctx context.Context, email string) (models.User, error) {
	return r.findUser(ctx, "storage.mongo.User", bson.D{{Key: "email", Value: email}})
}

func (r *MongoRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	return r.findUser(ctx, "storage.mongo.UserByID", bson.D{{Key: "_id", Value: id}})
}

func (r *MongoRepo) findUser(ctx context.Context, op string, filter bson.D) (models.User, error) {
	var u models.User

	if err := r.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// SetEmailVerified consumes token in a single findAndModify, so it can match at most once.
func (r *MongoRepo) SetEmailVerified(ctx context.Context, token string) (models.User, error) {
	const op = "storage.mongo.SetEmailVerified"

	filter := bson.D{{Key: "verification_token", Value: token}}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "is_verified", Value: true}}},
		{Key: "$unset", Value: bson.D{{Key: "verification_token", Value: ""}}},
	}

	var u models.User

	err := r.users.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, storage.ErrTokenNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *MongoRepo) UpdateVerificationToken(ctx context.Context, email, token string) error {
	const op = "storage.mongo.UpdateVerificationToken"

	filter := bson.D{{Key: "email", Value: email}, {Key: "is_verified", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "verification_token", Value: token}}}}

	res, err := r.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *MongoRepo) SaveMedia(ctx context.Context, m models.MediaItem) error {
	const op = "storage.mongo.SaveMedia"

	if _, err := r.media.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *MongoRepo) MediaByUser(ctx context.Context, userID string) ([]models.MediaItem, error) {
	const op = "storage.mongo.MediaByUser"

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(storage.MediaListLimit)

	cursor, err := r.media.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]models.MediaItem, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

func (r *MongoRepo) UpdateMedia(
	ctx context.Context,
	id, userID string,
	patch models.MediaPatch,
	updatedAt time.Time,
) (models.MediaItem, error) {
	const op = "storage.mongo.UpdateMedia"

	filter := bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}}
	update := bson.D{{Key: "$set", Value: patchDocument(patch, updatedAt)}}

	var m models.MediaItem

	err := r.media.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.MediaItem{}, storage.ErrMediaNotFound
		}

		return models.MediaItem{}, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

func (r *MongoRepo) DeleteMedia(ctx context.Context, id, userID string) error {
	const op = "storage.mongo.DeleteMedia"

	res, err := r.media.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return storage.ErrMediaNotFound
	}

	return nil
}

func (r *MongoRepo) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	_ = r.client.Disconnect(ctx)
}

// patchDocument lists only the supplied fields plus the refreshed updated_at.
func patchDocument(patch models.MediaPatch, updatedAt time.Time) bson.D {
	set := bson.D{}

	if patch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *patch.Title})
	}
	if patch.Type != nil {
		set = append(set, bson.E{Key: "type", Value: *patch.Type})
	}
	if patch.Status != nil {
		set = append(set, bson.E{Key: "status", Value: *patch.Status})
	}
	if patch.Current != nil {
		set = append(set, bson.E{Key: "current", Value: *patch.Current})
	}
	if patch.Total != nil {
		set = append(set, bson.E{Key: "total", Value: *patch.Total})
	}

	return append(set, bson.E{Key: "updated_at", Value: updatedAt})
}
