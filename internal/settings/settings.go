package settings

import (
	"context"
	"errors"

	"github.com/SentimentalK/Avalon-Tunnel/internal/audit"
	"github.com/SentimentalK/Avalon-Tunnel/model"
	"github.com/spf13/cast"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository interface {
	First(ctx context.Context, key string) (*model.Setting, error)
	Upsert(ctx context.Context, setting *model.Setting) error
}

type settingRepository struct {
	db *gorm.DB
}

func (r *settingRepository) First(ctx context.Context, key string) (*model.Setting, error) {
	var setting model.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *settingRepository) Upsert(ctx context.Context, setting *model.Setting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(setting).Error
}

func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db}
}

// Store exposes the global key/value settings used for cross-cutting flags.
type Store struct {
	repo SettingRepository
}

func NewStore(repo SettingRepository) *Store {
	return &Store{repo: repo}
}

// Get returns the stored value, or "" when the key is not set.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	setting, err := s.repo.First(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// GetInt returns the stored value as an integer, or def when the key is not
// set or not numeric.
func (s *Store) GetInt(ctx context.Context, key string, def int) int {
	value, err := s.Get(ctx, key)
	if err != nil || value == "" {
		return def
	}
	if n := cast.ToInt(value); n != 0 {
		return n
	}
	return def
}

func (s *Store) Set(ctx context.Context, key string, value string, description string) error {
	setting := model.Setting{
		Key:         key,
		Value:       value,
		Description: description,
	}
	if err := s.repo.Upsert(ctx, &setting); err != nil {
		return err
	}
	audit.RecordSettingUpdated(ctx, key, value)
	return nil
}
