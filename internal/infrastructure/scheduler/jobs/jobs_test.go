package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type refresherFunc func(ctx context.Context) error

func (f refresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

func TestCatalogRefreshJob(t *testing.T) {
	calls := 0
	job := NewCatalogRefreshJob(refresherFunc(func(context.Context) error {
		calls++
		return nil
	}), quietLogger())

	assert.Equal(t, "catalog_refresh", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, calls)

	failing := NewCatalogRefreshJob(refresherFunc(func(context.Context) error {
		return errors.New("redis down")
	}), quietLogger())
	assert.EqualError(t, failing.Run(context.Background()), "redis down")
}

type recorder map[string]bool

func (r recorder) DependencyChecked(name string, up bool) { r[name] = up }

func TestDependencyHealthJob(t *testing.T) {
	rec := recorder{}
	job := NewDependencyHealthJob(rec, quietLogger())
	assert.True(t, job.Healthy(), "no checks yet")

	job.Add("postgres", func(context.Context) error { return nil })
	job.Add("redis", func(context.Context) error { return errors.New("connection refused") })

	require.NoError(t, job.Run(context.Background()))

	assert.False(t, job.Healthy())
	assert.Equal(t, recorder{"postgres": true, "redis": false}, rec)

	statuses := job.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "postgres", statuses[0].Name)
	assert.True(t, statuses[0].Up)
	assert.Equal(t, "connection refused", statuses[1].Error)
}
