package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"certgrouper/internal/model"
	"certgrouper/internal/repository"
)

// BatchPostgres is a PostgreSQL implementation of repository.BatchRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type BatchPostgres struct {
	db *sql.DB
}

// NewBatchPostgres creates a new BatchPostgres repository.
func NewBatchPostgres(db *sql.DB) *BatchPostgres {
	return &BatchPostgres{db: db}
}

var _ repository.BatchRepository = (*BatchPostgres)(nil)

// Create inserts the batch row and one batch_groups row per course inside a transaction.
func (r *BatchPostgres) Create(ctx context.Context, b *model.Batch) (*model.Batch, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const qBatch = `
		INSERT INTO batches (id, archive_count, document_count, group_count, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, archive_count, document_count, group_count, object_key, created_at
	`
	row := tx.QueryRowContext(ctx, qBatch,
		b.ID,
		b.ArchiveCount,
		b.DocumentCount,
		b.GroupCount,
		nullString(b.ObjectKey),
		b.CreatedAt,
	)
	out, err := scanBatch(row)
	if err != nil {
		return nil, err
	}

	const qGroup = `
		INSERT INTO batch_groups (batch_id, position, course, folder, document_count)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i, g := range b.Groups {
		if _, err := tx.ExecContext(ctx, qGroup, out.ID, i, g.Course, g.Folder, g.Documents); err != nil {
			return nil, fmt.Errorf("insert group %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	out.Groups = append([]model.GroupCount(nil), b.Groups...)
	return out, nil
}

// FindByID fetches a single batch and its groups.
func (r *BatchPostgres) FindByID(ctx context.Context, id string) (*model.Batch, error) {
	const q = `
		SELECT id, archive_count, document_count, group_count, object_key, created_at
		FROM batches
		WHERE id = $1
	`
	b, err := scanBatch(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	const qGroups = `
		SELECT course, folder, document_count
		FROM batch_groups
		WHERE batch_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, qGroups, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var g model.GroupCount
		if err := rows.Scan(&g.Course, &g.Folder, &g.Documents); err != nil {
			return nil, err
		}
		b.Groups = append(b.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns batches using LIMIT/OFFSET pagination and a total count.
func (r *BatchPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Batch], error) {
	const qCount = `SELECT COUNT(*) FROM batches`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, archive_count, document_count, group_count, object_key, created_at
		FROM batches
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Batch]{
		Items: items,
		Total: total,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (*model.Batch, error) {
	var (
		b   model.Batch
		key sql.NullString
	)
	if err := s.Scan(
		&b.ID,
		&b.ArchiveCount,
		&b.DocumentCount,
		&b.GroupCount,
		&key,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.ObjectKey = key.String
	return &b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
