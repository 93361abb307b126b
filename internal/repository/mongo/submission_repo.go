package mongo

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sunilgawai/pitchreel/internal/domain"
	"github.com/sunilgawai/pitchreel/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const submissionCollectionName = "submissions"

// mongoSubmissionRepository implements repository.SubmissionRepository
type mongoSubmissionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubmissionRepository creates a new Submission repository backed by MongoDB.
func NewMongoSubmissionRepository(db *mongo.Database) repository.SubmissionRepository {
	return &mongoSubmissionRepository{
		collection: db.Collection(submissionCollectionName),
	}
}

// Create inserts a new submission record for a paid order.
func (r *mongoSubmissionRepository) Create(ctx context.Context, submission *domain.Submission) (primitive.ObjectID, error) {
	if submission.OrderID == "" {
		return primitive.NilObjectID, errors.New("submission requires an orderId")
	}

	submission.ID = primitive.NewObjectID()
	if submission.Status == "" {
		submission.Status = domain.StatusAwaitingUpload
	}
	if submission.Videos == nil {
		submission.Videos = []domain.VideoEntry{}
	}
	if submission.ActivityLogs == nil {
		submission.ActivityLogs = []domain.ActivityLogEntry{}
	}
	now := time.Now().UTC()
	submission.CreatedAt = now
	submission.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, submission)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateOrder
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves a submission by its ID.
func (r *mongoSubmissionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error) {
	var submission domain.Submission
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// GetByOrderID retrieves the submission created for a specific order.
func (r *mongoSubmissionRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Submission, error) {
	var submission domain.Submission
	filter := bson.M{"orderId": orderID}

	err := r.collection.FindOne(ctx, filter).Decode(&submission)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// Save replaces the whole submission document. Videos and activity logs are
// persisted as nested arrays, so a single Save commits an appended entry and
// a status transition together.
func (r *mongoSubmissionRepository) Save(ctx context.Context, submission *domain.Submission) error {
	if submission.ID == primitive.NilObjectID {
		return errors.New("submission ID is required for save")
	}

	submission.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": submission.ID}
	result, err := r.collection.ReplaceOne(ctx, filter, submission)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSubmissionIndexes creates necessary indexes for the submissions collection.
func EnsureSubmissionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One submission per paid order.
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Admin review screens list by status.
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
