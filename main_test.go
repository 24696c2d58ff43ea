package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/SentimentalK/Avalon-Tunnel/internal/config"
	"github.com/SentimentalK/Avalon-Tunnel/internal/registry"
	"github.com/SentimentalK/Avalon-Tunnel/internal/settings"
	"github.com/SentimentalK/Avalon-Tunnel/model"
	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func newBootstrapFixture(t *testing.T) (*config.Config, *registry.Registry, *settings.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
	})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	cfg := &config.Config{Domain: "example.com", APISecret: "s3cret"}
	require.NoError(t, cfg.Sanitize())
	return cfg, registry.NewRegistry(db, registry.NewUserRepository(db)), settings.NewStore(settings.NewSettingRepository(db))
}

func TestBootstrapFirstRun(t *testing.T) {
	cfg, reg, store := newBootstrapFixture(t)
	ctx := context.Background()

	require.NoError(t, bootstrap(ctx, cfg, reg, store))

	users, err := reg.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "default@example.com", users[0].Email)

	marker, err := store.Get(ctx, params.SettingInitialized)
	require.NoError(t, err)
	assert.Equal(t, "1", marker)
	assert.Equal(t, cfg.Ingress.PortBase, store.GetInt(ctx, params.SettingIngressPortBase, 0))
}

// A second startup must not create another default user.
func TestBootstrapIdempotent(t *testing.T) {
	cfg, reg, store := newBootstrapFixture(t)
	ctx := context.Background()

	require.NoError(t, bootstrap(ctx, cfg, reg, store))
	require.NoError(t, bootstrap(ctx, cfg, reg, store))

	users, err := reg.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRestartHookWithoutScript(t *testing.T) {
	hook := mustInitRestartHook("")
	assert.NoError(t, hook(context.Background()))
}

func TestMustPortFromAddr(t *testing.T) {
	assert.Equal(t, "8000", mustPortFromAddr(":8000"))
	assert.Equal(t, "8080", mustPortFromAddr("127.0.0.1:8080"))
}
