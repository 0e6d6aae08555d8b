package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpulse/domain"
)

func TestDispatcher_ExecuteQuery(t *testing.T) {
	d := NewDispatcher()
	d.RegisterQuery("echo", func(ctx context.Context, params interface{}) (interface{}, error) {
		return params, nil
	})

	out, err := d.ExecuteQuery(context.Background(), "echo", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	_, err = d.ExecuteQuery(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	assert.Contains(t, err.Error(), "missing")
}

func TestDispatcher_Queries(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, params interface{}) (interface{}, error) { return nil, nil }
	d.RegisterQuery("views.week", noop)
	d.RegisterQuery("trends.all", noop)
	d.RegisterQuery("views.day", noop)

	assert.Equal(t, []string{"trends.all", "views.day", "views.week"}, d.Queries())
}

func TestDispatcher_RegisterGuards(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, params interface{}) (interface{}, error) { return nil, nil }
	d.RegisterQuery("a", noop)

	assert.Panics(t, func() { d.RegisterQuery("a", noop) })
	assert.Panics(t, func() { d.RegisterQuery("b", nil) })
}
