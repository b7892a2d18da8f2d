package sqldb

import (
	"context"
	"fmt"

	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

// settingRepository implements repository.SettingRepository.
type settingRepository struct {
	db *database.DB
}

// NewSettingRepository creates a new setting repository.
func NewSettingRepository(db *database.DB) repository.SettingRepository {
	return &settingRepository{db: db}
}

// Get retrieves a setting by key.
func (r *settingRepository) Get(ctx context.Context, key string) (*domain.Setting, error) {
	setting := &domain.Setting{}
	var modifiedAt string

	err := r.db.QueryRowContext(ctx, `SELECT key, value, modified_at FROM settings WHERE key = ?`, key).
		Scan(&setting.Key, &setting.Value, &modifiedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.NewDomainError(domain.ErrNotFound, "setting not found", key)
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}

	if setting.ModifiedAt, err = database.ParseTime(modifiedAt); err != nil {
		return nil, fmt.Errorf("invalid modified_at for setting %s: %w", key, err)
	}

	return setting, nil
}

// Upsert creates the setting or overwrites its value.
func (r *settingRepository) Upsert(ctx context.Context, setting *domain.Setting) error {
	query := `
		INSERT INTO settings (key, value, modified_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, modified_at = excluded.modified_at
	`

	if _, err := r.db.ExecContext(ctx, query, setting.Key, setting.Value, database.FormatTime(setting.ModifiedAt)); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}

	return nil
}

// List returns all settings ordered by key.
func (r *settingRepository) List(ctx context.Context) ([]domain.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value, modified_at FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := []domain.Setting{}
	for rows.Next() {
		var setting domain.Setting
		var modifiedAt string
		if err := rows.Scan(&setting.Key, &setting.Value, &modifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if setting.ModifiedAt, err = database.ParseTime(modifiedAt); err != nil {
			return nil, fmt.Errorf("invalid modified_at for setting %s: %w", setting.Key, err)
		}
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return settings, nil
}

// DeleteAll removes every setting.
func (r *settingRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM settings`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete settings: %w", err)
	}
	return result.RowsAffected()
}
