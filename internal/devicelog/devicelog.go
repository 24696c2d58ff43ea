package devicelog

import (
	"context"
	"log/slog"
	"time"

	"github.com/SentimentalK/Avalon-Tunnel/model"
	"github.com/SentimentalK/Avalon-Tunnel/params"
)

// Service records client device sightings. Recording is passive telemetry:
// storage errors are logged and swallowed, never returned to the caller.
type Service struct {
	repo DeviceLogRepository
}

func NewService(repo DeviceLogRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Record(ctx context.Context, userID uint, userAgent string, sourceIP string, accessedPath string) {
	entry := model.DeviceAccessLog{
		UserID:       userID,
		UserAgent:    userAgent,
		SourceIP:     sourceIP,
		AccessedPath: accessedPath,
		AccessCount:  1,
		LastSeenAt:   time.Now(),
	}
	if err := s.repo.Upsert(ctx, &entry); err != nil {
		slog.Error("Failed to record device access", "user", userID, "ip", sourceIP, "error", err)
	}
}

func (s *Service) ListAll(ctx context.Context, limit int) ([]*DeviceAccess, error) {
	if limit <= 0 {
		limit = params.DeviceLogDefaultLimit
	}
	return s.repo.FindAll(ctx, limit)
}

func (s *Service) ListByUser(ctx context.Context, userID uint) ([]*model.DeviceAccessLog, error) {
	return s.repo.FindByUser(ctx, userID)
}
