package devicelog

import (
	"context"
	"time"

	"github.com/SentimentalK/Avalon-Tunnel/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceAccess is a device access row joined with the owning user's email.
type DeviceAccess struct {
	model.DeviceAccessLog
	UserEmail string `json:"user_email"`
}

type DeviceLogRepository interface {
	Upsert(ctx context.Context, entry *model.DeviceAccessLog) error
	FindAll(ctx context.Context, limit int) ([]*DeviceAccess, error)
	FindByUser(ctx context.Context, userID uint) ([]*model.DeviceAccessLog, error)
}

type deviceLogRepository struct {
	db *gorm.DB
}

// Upsert inserts a sighting or atomically bumps the existing row on the
// (user_id, user_agent, source_ip) natural key. FirstSeenAt is only ever set
// on insert; LastSeenAt and the counter are refreshed in the same statement.
func (r *deviceLogRepository) Upsert(ctx context.Context, entry *model.DeviceAccessLog) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "user_agent"}, {Name: "source_ip"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"access_count":  gorm.Expr("access_count + 1"),
			"last_seen_at":  time.Now(),
			"accessed_path": entry.AccessedPath,
		}),
	}).Create(entry).Error
}

func (r *deviceLogRepository) FindAll(ctx context.Context, limit int) ([]*DeviceAccess, error) {
	var entries []*DeviceAccess
	err := r.db.WithContext(ctx).
		Table("device_access_log AS d").
		Select("d.*, user.email AS user_email").
		Joins("LEFT JOIN user ON user.id = d.user_id").
		Order("d.last_seen_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *deviceLogRepository) FindByUser(ctx context.Context, userID uint) ([]*model.DeviceAccessLog, error) {
	var entries []*model.DeviceAccessLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_seen_at DESC").
		Find(&entries).Error
	return entries, err
}

func NewDeviceLogRepository(db *gorm.DB) DeviceLogRepository {
	return &deviceLogRepository{db}
}
