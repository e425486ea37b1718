package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("test")

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	require.NoError(t, c.Set(ctx, "short", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("app")

	require.NoError(t, c.Set(ctx, "page:/|a", "1", 0))
	require.NoError(t, c.Set(ctx, "page:/|b", "2", 0))
	require.NoError(t, c.Set(ctx, "page:/api/insights|a", "3", 0))
	require.NoError(t, c.Set(ctx, "user:a", "4", 0))

	require.NoError(t, c.DeletePrefix(ctx, "page:/|"))

	for _, k := range []string{"page:/|a", "page:/|b"} {
		_, err := c.Get(ctx, k)
		assert.ErrorIs(t, err, ErrNotFound, k)
	}
	for _, k := range []string{"page:/api/insights|a", "user:a"} {
		_, err := c.Get(ctx, k)
		assert.NoError(t, err, k)
	}
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "careercoach:page:/|a", prefixed("careercoach", "page:/|a"))
	assert.Equal(t, "careercoach:page:/|a", prefixed("careercoach:", "page:/|a"))
	assert.Equal(t, "page:/|a", prefixed("", "page:/|a"))
}

func TestGlobEscape(t *testing.T) {
	assert.Equal(t, `page:/\[x\]\*\?`, globEscape("page:/[x]*?"))
	assert.Equal(t, "page:/|github|1", globEscape("page:/|github|1"))
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "memcached"})
	assert.Error(t, err)

	c, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
}
