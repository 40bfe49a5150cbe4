package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_batches",
		SQL: `CREATE TABLE IF NOT EXISTS batches (
  id             UUID        PRIMARY KEY,
  archive_count  INTEGER     NOT NULL CHECK (archive_count >= 0),
  document_count INTEGER     NOT NULL CHECK (document_count >= 0),
  group_count    INTEGER     NOT NULL CHECK (group_count >= 0),
  object_key     TEXT        UNIQUE,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_batch_groups",
		SQL: `CREATE TABLE IF NOT EXISTS batch_groups (
  batch_id       UUID    NOT NULL REFERENCES batches (id) ON DELETE CASCADE,
  position       INTEGER NOT NULL,
  course         TEXT    NOT NULL,
  folder         TEXT    NOT NULL,
  document_count INTEGER NOT NULL CHECK (document_count > 0),
  PRIMARY KEY (batch_id, position)
);`,
	},
	{
		Name: "create_index_batches_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches (created_at);`,
	},
	{
		Name: "create_index_batch_groups_course",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_batch_groups_course ON batch_groups (course);`,
	},
}

// EnsureMigrated checks if the 'batches' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With(slog.String("component", "database"), slog.String("db_host", dbHost))

	log.Info("db_migration_check", slog.String("status", "starting"))

	var exists bool
	query := "SELECT to_regclass('public.batches') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			slog.String("status", "error"),
			slog.String("error_message", fmt.Sprintf("failed to check sentinel table: %v", err)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			slog.String("status", "success"),
			slog.String("detail", "schema already exists, skipping migration"),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", slog.String("status", "in_progress"))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				slog.String("status", "error"),
				slog.String("migration_step", step.Name),
				slog.String("error_message", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			slog.String("status", "success"),
			slog.String("migration_step", step.Name),
			slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		slog.String("status", "success"),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
