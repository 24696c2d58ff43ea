package audit

import (
	"context"

	"github.com/SentimentalK/Avalon-Tunnel/model"
	"gorm.io/gorm"
)

type AuditLogRepository interface {
	RecordEntry(ctx context.Context, entry *model.AuditLog) error
	Find(ctx context.Context, limit int) ([]*model.AuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

func (r *auditLogRepository) RecordEntry(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditLogRepository) Find(ctx context.Context, limit int) ([]*model.AuditLog, error) {
	var entries []*model.AuditLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{
		db: db,
	}
}
