package repository

import (
	"context"

	"certgrouper/internal/model"
)

// BatchRepository stores batch history metadata. Document content is never persisted.
type BatchRepository interface {
	// Create inserts a batch and its per-group counts atomically.
	Create(ctx context.Context, b *model.Batch) (*model.Batch, error)

	// FindByID returns a batch with its groups in first-seen order.
	// It returns sql.ErrNoRows when no batch matches.
	FindByID(ctx context.Context, id string) (*model.Batch, error)

	// List returns a page of batches, newest first, without their groups.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Batch], error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
