package repository

import (
	"context"

	"github.com/vozlab/escriba/internal/repository"
)

// NoopRepository is used when no DATABASE_URL is configured: sessions run
// without any persistence.
type NoopRepository struct{}

func NewNoopRepository() repository.SessionRepository {
	return &NoopRepository{}
}

func (*NoopRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) error {
	return nil
}

func (*NoopRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	return nil
}

func (*NoopRepository) ListRecentSessions(ctx context.Context, limit int) ([]repository.Session, error) {
	return nil, nil
}
