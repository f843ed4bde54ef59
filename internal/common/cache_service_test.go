package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheService_GetOrLoad(t *testing.T) {
	cs := NewCacheService(time.Minute, time.Minute)
	var hits, misses int
	cs.OnLookup(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return "40.7128,-74.0060", nil
	}

	v, err := cs.GetOrLoad(context.Background(), "New York", loader)
	require.NoError(t, err)
	assert.Equal(t, "40.7128,-74.0060", v)

	// keys are case and whitespace insensitive
	v, err = cs.GetOrLoad(context.Background(), "  new   york ", loader)
	require.NoError(t, err)
	assert.Equal(t, "40.7128,-74.0060", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestCacheService_ErrorsAreNotCached(t *testing.T) {
	cs := NewCacheService(time.Minute, time.Minute)
	_, err := cs.GetOrLoad(context.Background(), "k", func(context.Context) (any, error) {
		return nil, errors.New("geocoder down")
	})
	require.Error(t, err)
	assert.Equal(t, 0, cs.ItemCount())
}
