package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

const upsertConfigurationQuery = `INSERT INTO configurations (key, value, type, description, updated_by, updated_at)
VALUES (:key, :value, :type, :description, :updated_by, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, description = EXCLUDED.description,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`

// ConfigurationRepository persists the typed key/value rows backing school settings.
type ConfigurationRepository struct {
	db *sqlx.DB
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// ListByKeys returns configurations whose key is in the provided slice.
func (r *ConfigurationRepository) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT key, value, type, description, updated_by, updated_at
FROM configurations WHERE key IN (%s) ORDER BY key ASC`, placeholders(len(keys)))
	args := make([]interface{}, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	var configs []models.Configuration
	if err := r.db.SelectContext(ctx, &configs, query, args...); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return configs, nil
}

// LockKey reads a configuration row and holds its lock until exec's
// transaction ends. It returns sql.ErrNoRows when the key was never stored.
func (r *ConfigurationRepository) LockKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.Configuration, error) {
	const query = `SELECT key, value, type, description, updated_by, updated_at FROM configurations WHERE key = $1 FOR UPDATE`
	var cfg models.Configuration
	if err := sqlx.GetContext(ctx, exec, &cfg, query, key); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InsertIfMissing stores cfg only when its key has no row yet. A concurrent
// insert of the same key wins and this call becomes a no-op.
func (r *ConfigurationRepository) InsertIfMissing(ctx context.Context, exec sqlx.ExtContext, cfg *models.Configuration) error {
	const query = `INSERT INTO configurations (key, value, type, description, updated_by, updated_at)
VALUES (:key, :value, :type, :description, :updated_by, :updated_at)
ON CONFLICT (key) DO NOTHING`
	cfg.UpdatedAt = time.Now().UTC()
	if _, err := sqlx.NamedExecContext(ctx, exec, query, cfg); err != nil {
		return fmt.Errorf("seed configuration %s: %w", cfg.Key, err)
	}
	return nil
}

// UpsertWith inserts or updates a configuration entry on exec, typically a
// transaction holding the row lock.
func (r *ConfigurationRepository) UpsertWith(ctx context.Context, exec sqlx.ExtContext, cfg *models.Configuration) error {
	cfg.UpdatedAt = time.Now().UTC()
	if _, err := sqlx.NamedExecContext(ctx, exec, upsertConfigurationQuery, cfg); err != nil {
		return fmt.Errorf("upsert configuration %s: %w", cfg.Key, err)
	}
	return nil
}

// BulkUpsert performs upserts within a transaction.
func (r *ConfigurationRepository) BulkUpsert(ctx context.Context, cfgs []models.Configuration) error {
	if len(cfgs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk configuration tx: %w", err)
	}
	for i := range cfgs {
		if err := r.UpsertWith(ctx, tx, &cfgs[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bulk upsert configuration: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk configuration tx: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	values := make([]string, n)
	for i := 1; i <= n; i++ {
		values[i-1] = fmt.Sprintf("$%d", i)
	}
	return strings.Join(values, ",")
}
