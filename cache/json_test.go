package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Items []string `json:"items"`
}

func TestGetOrComputeJSONRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := NewKey(NamespaceSearch, "q")
	calls := 0
	fn := func(ctx context.Context) (payload, time.Duration, error) {
		calls++
		return payload{Items: []string{"a", "b"}}, 0, nil
	}

	first, res, err := GetOrComputeJSON(ctx, store, NamespaceSearch, key, false, fn)
	require.NoError(t, err)
	assert.False(t, res.Hit)

	second, res, err := GetOrComputeJSON(ctx, store, NamespaceSearch, key, false, fn)
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, _, err = GetOrComputeJSON(ctx, store, NamespaceSearch, key, true, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeJSONReplacesUndecodableEntry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := NewKey(NamespaceSearch, "q")

	require.NoError(t, store.Put(ctx, NamespaceSearch, key, []byte("{not json"), 0))

	got, res, err := GetOrComputeJSON(ctx, store, NamespaceSearch, key, false,
		func(ctx context.Context) (payload, time.Duration, error) {
			return payload{Items: []string{"fresh"}}, 0, nil
		})
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, []string{"fresh"}, got.Items)
}
