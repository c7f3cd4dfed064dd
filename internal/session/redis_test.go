package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/kiranshivaraju/pilotwatch/internal/session"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns its URL.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return "redis://" + host + ":" + port.Port()
}

func newRedisStore(t *testing.T, url, profile string) *session.RedisStore {
	t.Helper()
	rs, err := session.NewRedisStore(url, profile)
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })
	require.NoError(t, rs.Ping(context.Background()))
	return rs
}

func TestRedisStore_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rs := newRedisStore(t, setupRedis(t), "default")
	ctx := context.Background()

	_, found, err := rs.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	creds := &session.Credentials{
		AccessToken: "jwt-abc",
		ExpiresAt:   time.Now().Add(time.Hour).UTC(),
		User:        models.User{ID: "u1", Email: "ops@example.com"},
	}
	require.NoError(t, rs.Save(ctx, creds))

	got, found, err := rs.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "jwt-abc", got.AccessToken)
	assert.Equal(t, "ops@example.com", got.User.Email)

	require.NoError(t, rs.Clear(ctx))
	_, found, err = rs.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_KeyExpiresWithToken(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rs := newRedisStore(t, setupRedis(t), "default")
	ctx := context.Background()

	require.NoError(t, rs.Save(ctx, &session.Credentials{
		AccessToken: "short-lived",
		ExpiresAt:   time.Now().Add(1 * time.Second),
	}))

	time.Sleep(1500 * time.Millisecond)

	_, found, err := rs.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_ProfilesAreIsolated(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRedis(t)
	a := newRedisStore(t, url, "alice")
	b := newRedisStore(t, url, "bob")
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, &session.Credentials{AccessToken: "alice-token"}))

	_, found, err := b.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSession_SharedThroughRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupRedis(t)
	ctx := context.Background()

	first := session.New(newRedisStore(t, url, "default"))
	require.NoError(t, first.Init(ctx))
	require.NoError(t, first.Establish(ctx, models.LoginResponse{AccessToken: "jwt-abc", ExpiresIn: 3600}))

	second := session.New(newRedisStore(t, url, "default"))
	require.NoError(t, second.Init(ctx))
	assert.Equal(t, "jwt-abc", second.Token())
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := session.NewRedisStore("not a url", "default")
	assert.Error(t, err)
}
