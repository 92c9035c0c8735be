package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	parkingserrors "parkhive/internal/parkings/errors"
	"parkhive/pkg/config"
	mongotx "parkhive/pkg/db/mongo"
	"parkhive/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Parkings"
)

type ParkingRepository interface {
	Create(ctx context.Context, parking *model.Parking) error
	FindAll(ctx context.Context, limit int, offset int) ([]*model.Parking, error)
	Count(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id string) (*model.Parking, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Parking, error)
	Update(ctx context.Context, id string, update *model.ParkingUpdate) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoParkingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoParkingRepository(cfg *config.Config) ParkingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoParkingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless it is already a
// transaction SessionContext, which cannot be wrapped without breaking
// transaction semantics.
func (r *mongoParkingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoParkingRepository) Create(ctx context.Context, parking *model.Parking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	parking.CreatedAt = now
	parking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, parking)
	if err != nil {
		return fmt.Errorf("failed to create parking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		parking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoParkingRepository) FindAll(ctx context.Context, limit int, offset int) ([]*model.Parking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find parkings: %w", err)
	}
	defer cursor.Close(ctx)

	var parkings []*model.Parking
	if err := cursor.All(ctx, &parkings); err != nil {
		return nil, fmt.Errorf("failed to decode parkings: %w", err)
	}
	return parkings, nil
}

func (r *mongoParkingRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count parkings: %w", err)
	}
	return count, nil
}

func (r *mongoParkingRepository) FindByID(ctx context.Context, id string) (*model.Parking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", parkingserrors.ErrInvalidID, id)
	}

	var parking model.Parking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&parking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, parkingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find parking: %w", err)
	}

	return &parking, nil
}

func (r *mongoParkingRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Parking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if len(ids) == 0 {
		return []*model.Parking{}, nil
	}

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", parkingserrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, objectID)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find parkings: %w", err)
	}
	defer cursor.Close(ctx)

	var parkings []*model.Parking
	if err := cursor.All(ctx, &parkings); err != nil {
		return nil, fmt.Errorf("failed to decode parkings: %w", err)
	}
	return parkings, nil
}

func (r *mongoParkingRepository) Update(ctx context.Context, id string, update *model.ParkingUpdate) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", parkingserrors.ErrInvalidID, id)
	}

	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	if update.Name != "" {
		set["name"] = update.Name
	}
	if update.Address != "" {
		set["address"] = update.Address
	}
	if update.Banner != "" {
		set["banner"] = update.Banner
	}
	if update.Description != "" {
		set["description"] = update.Description
	}
	if update.Hours != nil {
		set["hours"] = update.Hours
	}
	if update.RatePerHour != nil {
		set["rate_per_hour"] = *update.RatePerHour
	}
	if update.AvailableSpots != nil {
		set["available_spots"] = *update.AvailableSpots
	}
	if update.Tags != nil {
		set["tags"] = update.Tags
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update parking: %w", err)
	}
	if result.MatchedCount == 0 {
		return parkingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoParkingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", parkingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete parking: %w", err)
	}
	if result.DeletedCount == 0 {
		return parkingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoParkingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
