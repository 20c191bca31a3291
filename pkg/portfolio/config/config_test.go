package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
	redisnotify "github.com/tendant/portfolio-admin/pkg/portfolio/notify/redis"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_RequiresStore(t *testing.T) {
	_, err := Load()
	assert.ErrorContains(t, err, "STORE_URL is required")

	_, err = Load(WithStore("memory", ""))
	assert.ErrorContains(t, err, "STORE_KEY is required")

	cfg, err := Load(WithStore("memory", "secret"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory://", cfg.StorageURL)
	assert.Equal(t, "images", cfg.StorageBucket)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		wantError bool
	}{
		{"postgres store", []Option{WithStore("postgres://u:p@localhost/db", "k")}, false},
		{"postgresql store", []Option{WithStore("postgresql://u:p@localhost/db", "k")}, false},
		{"mysql store", []Option{WithStore("mysql://localhost/db", "k")}, true},
		{"file storage", []Option{WithStore("memory", "k"), WithStorage("file:///var/lib/portfolio", "")}, false},
		{"empty file storage", []Option{WithStore("memory", "k"), WithStorage("file://", "")}, true},
		{"s3 storage", []Option{WithStore("memory", "k"), WithStorage("s3://assets?region=eu-west-1", "")}, false},
		{"empty s3 bucket", []Option{WithStore("memory", "k"), WithStorage("s3://", "")}, true},
		{"ftp storage", []Option{WithStore("memory", "k"), WithStorage("ftp://host/dir", "")}, true},
		{"bad environment", []Option{WithStore("memory", "k"), WithEnvironment("staging")}, true},
		{"valid schedule", []Option{WithStore("memory", "k"), WithReconcile("*/15 * * * *", time.Minute)}, false},
		{"bad schedule", []Option{WithStore("memory", "k"), WithReconcile("every day", time.Minute)}, true},
		{"negative grace", []Option{WithStore("memory", "k"), WithReconcile("", -time.Second)}, true},
		{"zero ttl", []Option{WithStore("memory", "k"), WithSessionTTL(0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts...)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStorageTarget(t *testing.T) {
	cfg := defaults()
	cfg.StorageURL = "s3://assets?region=eu-west-1"
	target, err := cfg.storage()
	require.NoError(t, err)
	assert.Equal(t, storageTarget{Type: "s3", Bucket: "assets", Region: "eu-west-1"}, target)

	cfg.StorageURL = "file:///var/lib/portfolio"
	target, err = cfg.storage()
	require.NoError(t, err)
	assert.Equal(t, storageTarget{Type: "fs", Dir: "/var/lib/portfolio", Bucket: "images"}, target)
}

func TestWithEnv(t *testing.T) {
	unsetEnv(t, "STORAGE_URL", "REDIS_URL", "RECONCILE_SCHEDULE")
	t.Setenv("STORE_URL", "memory")
	t.Setenv("STORE_KEY", "from-env")
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "testing")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("ALLOW_SIGN_UP", "true")

	cfg, err := Load(WithEnv(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "testing", cfg.Environment)
	assert.Equal(t, "from-env", cfg.StoreKey)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.ReconcileGrace)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.True(t, cfg.AllowSignUp)
	assert.Equal(t, "memory://", cfg.StorageURL)
}

func TestWithEnv_RequiredVariables(t *testing.T) {
	unsetEnv(t, "STORE_URL", "STORE_KEY")

	_, err := Load(WithEnv(filepath.Join(t.TempDir(), "missing.env")))
	assert.Error(t, err)
}

func TestWithEnv_DotenvFile(t *testing.T) {
	unsetEnv(t, "STORE_URL", "STORE_KEY", "STORAGE_BUCKET")
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("STORE_URL=memory\nSTORE_KEY=dotenv-secret\nSTORAGE_BUCKET=media\n"), 0o600))

	cfg, err := Load(WithEnv(file))
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.StoreKey)
	assert.Equal(t, "media", cfg.StorageBucket)
}

func TestBuild_Memory(t *testing.T) {
	cfg, err := Load(WithStore("memory", "secret"), WithReconcile("@every 1h", time.Minute))
	require.NoError(t, err)

	rt, err := cfg.Build(context.Background(), nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, rt.Close()) }()

	ctx := context.Background()
	tech, err := rt.Services.Technologies.Create(ctx, portfolio.TechnologyDraft{Name: "Go", IsSkill: true})
	require.NoError(t, err)
	skills, err := rt.Services.Technologies.Skills(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, tech.ID, skills[0].ID)

	recent, err := rt.Services.Feed.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Technology created successfully", recent[0].Detail)

	assert.Equal(t, "images", rt.Services.Images.Blobs().Bucket())
	assert.Empty(t, rt.Router.PublicAPIKeys)
	assert.False(t, rt.Router.SecureCookie)
	assert.False(t, rt.Router.AllowSignUp)
}

func TestBuild_FilesystemAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	cfg, err := Load(
		WithStore("memory", "secret"),
		WithStorage("file://"+dir, "media"),
		WithRedis("redis://"+mr.Addr()),
		WithPublicAPIKey("abc123"),
		WithEnvironment("production"),
		WithSignUp(true),
	)
	require.NoError(t, err)

	rt, err := cfg.Build(context.Background(), nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.IsType(t, &redisnotify.Sink{}, rt.Services.Feed)
	assert.Equal(t, map[string]string{"public": "abc123"}, rt.Router.PublicAPIKeys)
	assert.True(t, rt.Router.SecureCookie)
	assert.True(t, rt.Router.AllowSignUp)

	ctx := context.Background()
	session, err := rt.Services.Auth.SignUp(ctx, "admin@example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, mr.Exists("portfolio:session:"+session.ID))

	_, err = os.Stat(filepath.Join(dir, "media"))
	assert.NoError(t, err)
}

func TestBuild_RedisUnavailable(t *testing.T) {
	cfg, err := Load(WithStore("memory", "secret"), WithRedis("redis://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = cfg.Build(context.Background(), nil)
	assert.ErrorContains(t, err, "failed to connect to redis")
}
