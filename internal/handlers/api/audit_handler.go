package api

import (
	"log/slog"

	"github.com/SentimentalK/Avalon-Tunnel/internal/audit"
	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/gofiber/fiber/v2"
)

type AuditHandler struct {
	repo audit.AuditLogRepository
}

func NewAuditHandler(repo audit.AuditLogRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// GetAuditLog returns the most recent administrative mutations, newest first.
func (h *AuditHandler) GetAuditLog(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", params.AuditLogDefaultLimit)
	entries, err := h.repo.Find(c.Context(), limit)
	if err != nil {
		slog.Error("Failed to list audit entries", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to list audit entries", err.Error()))
	}
	return c.JSON(AuditListResponse{
		Success: true,
		Count:   len(entries),
		Entries: entries,
	})
}
