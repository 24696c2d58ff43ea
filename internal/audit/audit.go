package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SentimentalK/Avalon-Tunnel/model"
)

var auditRepo AuditLogRepository
var initOnce sync.Once

func Initialize(repo AuditLogRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

const (
	ActionCreateUser    = "create_user"
	ActionUpdateUser    = "update_user"
	ActionDeleteUser    = "delete_user"
	ActionUpdateSetting = "update_setting"
	ActionReloadConfig  = "reload_config"
)

// Record appends an audit entry. The trail is best effort: a failed write is
// logged and swallowed so it can never fail the mutation that triggered it.
func Record(ctx context.Context, action string, target string, details string) {
	if auditRepo == nil {
		return
	}
	entry := &model.AuditLog{
		Action:  action,
		Target:  target,
		Details: details,
	}
	if err := auditRepo.RecordEntry(ctx, entry); err != nil {
		slog.Warn("Failed to record audit entry", "action", action, "target", target, "error", err)
	}
}

func RecordUserCreated(ctx context.Context, user *model.User) {
	Record(ctx, ActionCreateUser, fmt.Sprintf("user:%s", user.UUID),
		fmt.Sprintf("Created user %s with UUID %s, path: /%s", user.Email, user.UUID, user.SecretPath))
}

func RecordUserUpdated(ctx context.Context, userUUID string, columns map[string]interface{}) {
	Record(ctx, ActionUpdateUser, fmt.Sprintf("user:%s", userUUID), fmt.Sprintf("Updated: %v", columns))
}

func RecordUserDeleted(ctx context.Context, userUUID string) {
	Record(ctx, ActionDeleteUser, fmt.Sprintf("user:%s", userUUID), fmt.Sprintf("Deleted user %s", userUUID))
}

func RecordSettingUpdated(ctx context.Context, key string, value string) {
	Record(ctx, ActionUpdateSetting, fmt.Sprintf("setting:%s", key), fmt.Sprintf("Set %s = %s", key, value))
}

func RecordConfigReloaded(ctx context.Context, userCount int, message string) {
	Record(ctx, ActionReloadConfig, "config", fmt.Sprintf("Synthesized configs for %d users: %s", userCount, message))
}
