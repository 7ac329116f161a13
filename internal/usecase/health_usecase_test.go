package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	refused := errors.New("dial tcp: connection refused")
	down := pingFunc(func(context.Context) error { return refused })

	status, err := NewHealthChecker(map[string]Pinger{"postgres": ok, "redis": ok}).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"postgres": "healthy", "redis": "healthy"}, status)

	status, err = NewHealthChecker(map[string]Pinger{"postgres": down, "redis": down}).Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, refused)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, map[string]string{"postgres": "unhealthy", "redis": "unhealthy"}, status)
}

func TestHealthCheckAppliesTimeout(t *testing.T) {
	var hasDeadline bool
	slowPing := pingFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	_, err := NewHealthChecker(map[string]Pinger{"postgres": slowPing}).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, hasDeadline)
}
