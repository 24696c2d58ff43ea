package api

import (
	"time"

	"github.com/SentimentalK/Avalon-Tunnel/internal/synth"
	"github.com/SentimentalK/Avalon-Tunnel/model"
)

// ErrorResponse is the envelope every failed request carries.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func NewErrorResponse(message string, detail string) ErrorResponse {
	return ErrorResponse{Success: false, Message: message, Detail: detail}
}

type CreateUserRequest struct {
	Email string `json:"email"`
	Notes string `json:"notes"`
	Level int    `json:"level"`
}

// UpdateUserRequest deliberately has no uuid or secret_path fields: attempts
// to send them are dropped during decoding instead of applied.
type UpdateUserRequest struct {
	Email   *string `json:"email"`
	Enabled *bool   `json:"enabled"`
	Level   *int    `json:"level"`
	Notes   *string `json:"notes"`
}

type UserResponse struct {
	ID         uint      `json:"id"`
	UUID       string    `json:"uuid"`
	SecretPath string    `json:"secret_path"`
	Email      string    `json:"email"`
	Level      int       `json:"level"`
	Enabled    bool      `json:"enabled"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	VlessLink  string    `json:"vless_link,omitempty"`
}

func newUserResponse(user *model.User, domain string) UserResponse {
	return UserResponse{
		ID:         user.ID,
		UUID:       user.UUID,
		SecretPath: user.SecretPath,
		Email:      user.Email,
		Level:      user.Level,
		Enabled:    user.Enabled,
		Notes:      user.Notes,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
		VlessLink:  synth.ClientLink(user, domain),
	}
}

type CreateUserResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type UserListResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Users   []UserResponse `json:"users"`
}

type DeviceListResponse struct {
	Success bool        `json:"success"`
	Count   int         `json:"count"`
	Devices interface{} `json:"devices"`
}

type AuditListResponse struct {
	Success bool              `json:"success"`
	Count   int               `json:"count"`
	Entries []*model.AuditLog `json:"entries"`
}

type RecordDeviceRequest struct {
	UserUUID     string `json:"user_uuid"`
	UserAgent    string `json:"user_agent"`
	SourceIP     string `json:"source_ip"`
	AccessedPath string `json:"accessed_path"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
