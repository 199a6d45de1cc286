package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"canvas-backend/internal/model"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *ExportCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewExportCache(client, ttl, zap.NewNop())
}

func TestExportCache_PutGet(t *testing.T) {
	_, c := setupTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "canvas:export:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "canvas:export:a", []byte("%PDF-1.3")))
	data, ok, err := c.Get(ctx, "canvas:export:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("%PDF-1.3"), data)
}

func TestExportCache_TTL(t *testing.T) {
	mr, c := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "canvas:export:a", []byte("x")))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "canvas:export:a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExportCache_Flush(t *testing.T) {
	mr, c := setupTestCache(t, 0)
	ctx := context.Background()

	for _, k := range []string{"canvas:export:a", "canvas:export:b", "canvas:export:c"} {
		require.NoError(t, c.Put(ctx, k, []byte("x")))
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	n, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, mr.Exists("unrelated"))
	assert.False(t, mr.Exists("canvas:export:a"))
}

func TestExportCache_NilIsDisabled(t *testing.T) {
	var c *ExportCache
	ctx := context.Background()

	assert.False(t, c.Enabled())
	require.NoError(t, c.Put(ctx, "k", []byte("x")))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	n, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, c.Health(ctx))
}

func TestKey(t *testing.T) {
	at := time.Unix(1700000000, 0)
	fields := []model.TemplateField{{FieldLabel: "Notes", FieldType: model.FieldTypeTextarea, IsRequired: true}}

	k := Key("doc", "pdf", at, fields)
	assert.Contains(t, k, "canvas:export:doc:pdf:")
	assert.Equal(t, k, Key("doc", "pdf", at, fields))
	assert.NotEqual(t, k, Key("doc", "pdf", at.Add(time.Millisecond), fields))
	assert.NotEqual(t, k, Key("doc", "json", at, fields))

	optional := []model.TemplateField{{FieldLabel: "Notes", FieldType: model.FieldTypeTextarea}}
	assert.NotEqual(t, Fingerprint(fields), Fingerprint(optional))
	assert.Equal(t, Fingerprint(nil), Fingerprint([]model.TemplateField{}))
}
