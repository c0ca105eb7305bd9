package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(ctx context.Context) error { return nil }

func failing(msg string) HealthCheckFunc {
	return func(ctx context.Context) error { return errors.New(msg) }
}

func TestHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("v1").Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "No health checks registered", status.Message)
}

func TestHealthChecker_AllPass(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("fallback_store", ok)
	c.AddOptionalCheck("github", ok)

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.False(t, status.Degraded)
	assert.Len(t, status.Checks, 2)
	assert.Equal(t, "v1", status.Version)
}

func TestHealthChecker_OptionalFailureDegrades(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("fallback_store", ok)
	c.AddOptionalCheck("github", failing("connection refused"))

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.True(t, status.Degraded)
	assert.Equal(t, "Degraded: github", status.Message)

	gh := status.Checks["github"]
	assert.False(t, gh.Healthy)
	assert.True(t, gh.Optional)
	assert.Equal(t, "connection refused", gh.Message)
}

func TestHealthChecker_RequiredFailure(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("fallback_store", failing("disk full"))
	c.AddCheck("attendance_loaded", failing("not loaded"))
	c.AddOptionalCheck("github", ok)

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: attendance_loaded, fallback_store", status.Message)
}

func TestHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	require.Contains(t, status.Checks, "slow")
	assert.False(t, status.Healthy)
}

func TestHealthChecker_RemoveCheck(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("broken", failing("x"))
	c.RemoveCheck("broken")

	assert.True(t, c.Check(context.Background()).Healthy)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestNewPingCheck(t *testing.T) {
	check := NewPingCheck(pingerFunc(func(ctx context.Context) error { return errors.New("down") }))
	assert.EqualError(t, check(context.Background()), "down")
}
