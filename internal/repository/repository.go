package repository

import (
	"context"

	"github.com/sunilgawai/pitchreel/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound       = RepositoryError("not found")
	ErrDuplicateOrder = RepositoryError("order already has a submission")
	ErrUpdateFailed   = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// SubmissionRepository defines the interface for interacting with submission
// records. Save persists the whole document: callers follow a
// read-modify-write pattern and the store applies last-write-wins semantics.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *domain.Submission) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Submission, error)
	Save(ctx context.Context, submission *domain.Submission) error
}
