package driven

import (
	"context"
	"errors"

	"github.com/evanfisk/citriage/internal/domain/model"
)

// Sentinel errors for repository store operations.
var (
	ErrRepoAlreadyExists = errors.New("repository already exists")
	ErrRepoNotFound      = errors.New("repository not found")
)

// RepoStore defines the driven port for watched-repository persistence.
type RepoStore interface {
	Add(ctx context.Context, repo model.Repository) error
	Remove(ctx context.Context, fullName string) error
	GetByFullName(ctx context.Context, fullName string) (*model.Repository, error)
	ListAll(ctx context.Context) ([]model.Repository, error)
}
