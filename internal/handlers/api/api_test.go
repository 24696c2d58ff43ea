package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/SentimentalK/Avalon-Tunnel/internal/audit"
	"github.com/SentimentalK/Avalon-Tunnel/internal/devicelog"
	"github.com/SentimentalK/Avalon-Tunnel/internal/handlers/api"
	"github.com/SentimentalK/Avalon-Tunnel/internal/middlewares"
	"github.com/SentimentalK/Avalon-Tunnel/internal/registry"
	"github.com/SentimentalK/Avalon-Tunnel/internal/settings"
	"github.com/SentimentalK/Avalon-Tunnel/internal/synth"
	"github.com/SentimentalK/Avalon-Tunnel/model"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const testSecret = "test-secret"

type apiFixture struct {
	app       *fiber.App
	registry  *registry.Registry
	auditRepo audit.AuditLogRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	reg := registry.NewRegistry(db, registry.NewUserRepository(db))
	store := settings.NewStore(settings.NewSettingRepository(db))
	devices := devicelog.NewService(devicelog.NewDeviceLogRepository(db))
	synthesizer := synth.NewSynthesizer(reg, store,
		func(ctx context.Context) error { return nil },
		synth.Options{
			Domain:     "example.com",
			PortBase:   10000,
			ConfigFile: filepath.Join(dir, "config.json"),
			RoutesFile: filepath.Join(dir, "Caddyfile"),
			AdminPort:  "8000",
			DecoyPort:  "8080",
		})

	userHandler := api.NewUserHandler(reg, "example.com")
	deviceHandler := api.NewDeviceHandler(reg, devices)
	configHandler := api.NewConfigHandler(synthesizer)
	auditRepo := audit.NewAuditLogRepository(db)
	auditHandler := api.NewAuditHandler(auditRepo)

	app := fiber.New(fiber.Config{ErrorHandler: middlewares.ErrorHandler})
	group := app.Group("/api")
	group.Get("/health", configHandler.GetHealth)
	group.Use(middlewares.BearerAuth(testSecret))
	group.Post("/users", userHandler.PostUser)
	group.Get("/users", userHandler.GetUsers)
	group.Get("/users/:uuid", userHandler.GetUser)
	group.Put("/users/:uuid", userHandler.PutUser)
	group.Delete("/users/:uuid", userHandler.DeleteUser)
	group.Post("/config/reload", configHandler.PostReload)
	group.Get("/devices", deviceHandler.GetDevices)
	group.Post("/devices/record", deviceHandler.PostRecordDevice)
	group.Get("/users/:uuid/devices", deviceHandler.GetUserDevices)
	group.Get("/audit", auditHandler.GetAuditLog)

	return &apiFixture{app: app, registry: reg, auditRepo: auditRepo}
}

func (f *apiFixture) request(t *testing.T, method, path string, payload interface{}) *requestResult {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+testSecret)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return &requestResult{status: resp.StatusCode, body: raw}
}

type requestResult struct {
	status int
	body   []byte
}

func (r *requestResult) decode(t *testing.T, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, out))
}

func TestPostUser(t *testing.T) {
	f := newAPIFixture(t)

	res := f.request(t, "POST", "/api/users", map[string]interface{}{
		"email": "alice@example.com",
		"notes": "first user",
		"level": 1,
	})
	require.Equal(t, fiber.StatusCreated, res.status)

	var created api.CreateUserResponse
	res.decode(t, &created)
	assert.True(t, created.Success)
	assert.Equal(t, "alice@example.com", created.User.Email)
	assert.NotEmpty(t, created.User.UUID)
	assert.NotEmpty(t, created.User.SecretPath)
	assert.True(t, created.User.Enabled)
	assert.Contains(t, created.User.VlessLink, "vless://"+created.User.UUID+"@example.com:443")
}

func TestPostUserValidation(t *testing.T) {
	f := newAPIFixture(t)

	res := f.request(t, "POST", "/api/users", map[string]interface{}{})
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = f.request(t, "POST", "/api/users", map[string]interface{}{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	var envelope api.ErrorResponse
	res.decode(t, &envelope)
	assert.False(t, envelope.Success)
	assert.NotEmpty(t, envelope.Message)
}

func TestPostUserDuplicate(t *testing.T) {
	f := newAPIFixture(t)

	res := f.request(t, "POST", "/api/users", map[string]interface{}{"email": "alice@example.com"})
	require.Equal(t, fiber.StatusCreated, res.status)

	res = f.request(t, "POST", "/api/users", map[string]interface{}{"email": "alice@example.com"})
	assert.Equal(t, fiber.StatusConflict, res.status)

	var envelope api.ErrorResponse
	res.decode(t, &envelope)
	assert.False(t, envelope.Success)
}

func TestGetUsers(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	alice, err := f.registry.Create(ctx, registry.CreateUserOptions{Email: "alice@example.com"})
	require.NoError(t, err)
	bob, err := f.registry.Create(ctx, registry.CreateUserOptions{Email: "bob@example.com"})
	require.NoError(t, err)

	enabled := false
	_, err = f.registry.Update(ctx, bob.UUID, registry.UpdateUserOptions{Enabled: &enabled})
	require.NoError(t, err)

	res := f.request(t, "GET", "/api/users", nil)
	require.Equal(t, fiber.StatusOK, res.status)
	var list api.UserListResponse
	res.decode(t, &list)
	assert.Equal(t, 2, list.Count)

	res = f.request(t, "GET", "/api/users?enabled_only=true", nil)
	require.Equal(t, fiber.StatusOK, res.status)
	res.decode(t, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, alice.UUID, list.Users[0].UUID)
}

func TestGetUserNotFound(t *testing.T) {
	f := newAPIFixture(t)
	res := f.request(t, "GET", "/api/users/no-such-uuid", nil)
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func TestPutUser(t *testing.T) {
	f := newAPIFixture(t)
	user, err := f.registry.Create(context.Background(), registry.CreateUserOptions{Email: "alice@example.com"})
	require.NoError(t, err)

	res := f.request(t, "PUT", "/api/users/"+user.UUID, map[string]interface{}{
		"enabled": false,
		"notes":   "suspended",
	})
	require.Equal(t, fiber.StatusOK, res.status)

	var updated api.UserResponse
	res.decode(t, &updated)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "suspended", updated.Notes)
	assert.Equal(t, user.UUID, updated.UUID)
	assert.Equal(t, user.SecretPath, updated.SecretPath)
}

// Identity fields in the payload are dropped, not applied: a body carrying
// only them counts as an empty update.
func TestPutUserIgnoresIdentityFields(t *testing.T) {
	f := newAPIFixture(t)
	user, err := f.registry.Create(context.Background(), registry.CreateUserOptions{Email: "alice@example.com"})
	require.NoError(t, err)

	res := f.request(t, "PUT", "/api/users/"+user.UUID, map[string]interface{}{
		"uuid":        "99999999-9999-9999-9999-999999999999",
		"secret_path": "hijacked",
	})
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	got, err := f.registry.GetByUUID(context.Background(), user.UUID)
	require.NoError(t, err)
	assert.Equal(t, user.SecretPath, got.SecretPath)
}

func TestPutUserEmptyBody(t *testing.T) {
	f := newAPIFixture(t)
	user, err := f.registry.Create(context.Background(), registry.CreateUserOptions{Email: "alice@example.com"})
	require.NoError(t, err)

	res := f.request(t, "PUT", "/api/users/"+user.UUID, map[string]interface{}{})
	assert.Equal(t, fiber.StatusBadRequest, res.status)
}

func TestPutUserNotFound(t *testing.T) {
	f := newAPIFixture(t)
	res := f.request(t, "PUT", "/api/users/no-such-uuid", map[string]interface{}{"enabled": false})
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func TestDeleteUser(t *testing.T) {
	f := newAPIFixture(t)
	user, err := f.registry.Create(context.Background(), registry.CreateUserOptions{Email: "alice@example.com"})
	require.NoError(t, err)

	res := f.request(t, "DELETE", "/api/users/"+user.UUID, nil)
	assert.Equal(t, fiber.StatusNoContent, res.status)

	res = f.request(t, "DELETE", "/api/users/"+user.UUID, nil)
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func TestRecordAndListDevices(t *testing.T) {
	f := newAPIFixture(t)
	user, err := f.registry.Create(context.Background(), registry.CreateUserOptions{Email: "alice@example.com"})
	require.NoError(t, err)

	res := f.request(t, "POST", "/api/devices/record", map[string]interface{}{
		"user_uuid":     user.UUID,
		"user_agent":    "Mozilla/5.0",
		"source_ip":     "203.0.113.7",
		"accessed_path": "/" + user.SecretPath,
	})
	require.Equal(t, fiber.StatusOK, res.status)

	res = f.request(t, "GET", "/api/devices", nil)
	require.Equal(t, fiber.StatusOK, res.status)
	var list api.DeviceListResponse
	res.decode(t, &list)
	assert.Equal(t, 1, list.Count)

	res = f.request(t, "GET", "/api/users/"+user.UUID+"/devices", nil)
	require.Equal(t, fiber.StatusOK, res.status)
	res.decode(t, &list)
	assert.Equal(t, 1, list.Count)
}

func TestRecordDeviceValidation(t *testing.T) {
	f := newAPIFixture(t)

	res := f.request(t, "POST", "/api/devices/record", map[string]interface{}{
		"user_agent": "Mozilla/5.0",
	})
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = f.request(t, "POST", "/api/devices/record", map[string]interface{}{
		"user_uuid": "no-such-uuid",
		"source_ip": "203.0.113.7",
	})
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func TestGetUserDevicesNotFound(t *testing.T) {
	f := newAPIFixture(t)
	res := f.request(t, "GET", "/api/users/no-such-uuid/devices", nil)
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func TestGetAuditLog(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.auditRepo.RecordEntry(ctx, &model.AuditLog{
		Action: "create_user", Target: "user:abc", Details: "Created user a@example.com",
	}))
	require.NoError(t, f.auditRepo.RecordEntry(ctx, &model.AuditLog{
		Action: "delete_user", Target: "user:abc", Details: "Deleted user abc",
	}))

	res := f.request(t, "GET", "/api/audit", nil)
	require.Equal(t, fiber.StatusOK, res.status)

	var list api.AuditListResponse
	res.decode(t, &list)
	assert.True(t, list.Success)
	require.Equal(t, 2, list.Count)
	actions := map[string]bool{}
	for _, entry := range list.Entries {
		actions[entry.Action] = true
	}
	assert.True(t, actions["create_user"])
	assert.True(t, actions["delete_user"])

	res = f.request(t, "GET", "/api/audit?limit=1", nil)
	require.Equal(t, fiber.StatusOK, res.status)
	res.decode(t, &list)
	assert.Equal(t, 1, list.Count)
}

func TestConfigReload(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.registry.Create(context.Background(), registry.CreateUserOptions{Email: "alice@example.com"})
	require.NoError(t, err)

	res := f.request(t, "POST", "/api/config/reload", nil)
	require.Equal(t, fiber.StatusOK, res.status)

	var result synth.Result
	res.decode(t, &result)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.UserCount)
}

func TestHealthIsPublic(t *testing.T) {
	f := newAPIFixture(t)

	// no Authorization header at all
	resp, err := f.app.Test(httptest.NewRequest("GET", "/api/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var health api.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "avalon-tunnel", health.Service)
	assert.NotEmpty(t, health.Version)
}

func TestEndpointsRequireAuth(t *testing.T) {
	f := newAPIFixture(t)
	resp, err := f.app.Test(httptest.NewRequest("GET", "/api/users", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
