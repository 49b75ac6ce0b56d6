// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/leadbridge/models"
)

type Repository[T any, F any] interface {
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// ClickRecordRepository defines operations for click records
type ClickRecordRepository interface {
	Repository[models.ClickRecord, models.ClickRecordFilter]
	ByToken(ctx context.Context, token string) (*models.ClickRecord, error)
	// ResolveIdentity links the token to chatID only if it is not linked yet.
	// It reports false when no unresolved record matched.
	ResolveIdentity(ctx context.Context, token, chatID string, at time.Time) (bool, error)
}
