package loader_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/liquidview/loader"
	"github.com/karloscodes/liquidview/testsupport"
)

func TestDBLoader(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	require.NoError(t, loader.Migrate(db))

	l := loader.NewDBLoader(db)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := l.Load(ctx, "missing")
		assert.ErrorIs(t, err, loader.ErrTemplateNotFound)
	})

	t.Run("put and load", func(t *testing.T) {
		require.NoError(t, l.Put(ctx, "welcome", "Welcome {{ user }}"))

		src, err := l.Load(ctx, "welcome")
		require.NoError(t, err)
		assert.Equal(t, "Welcome {{ user }}", src.Text)
		assert.Equal(t, "db:liquid_templates/welcome", src.Path)
		assert.True(t, src.Fresh(ctx))
	})

	t.Run("update marks stale", func(t *testing.T) {
		src, err := l.Load(ctx, "welcome")
		require.NoError(t, err)

		require.NoError(t, l.Put(ctx, "welcome", "Hi {{ user }}"))
		assert.False(t, src.Fresh(ctx))

		src, err = l.Load(ctx, "welcome")
		require.NoError(t, err)
		assert.Equal(t, "Hi {{ user }}", src.Text)
	})

	t.Run("names", func(t *testing.T) {
		require.NoError(t, l.Put(ctx, "about", "About"))
		t.Cleanup(func() { _ = l.Remove(ctx, "about") })

		names, err := l.Names(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"about", "welcome"}, names)
	})

	t.Run("remove", func(t *testing.T) {
		src, err := l.Load(ctx, "welcome")
		require.NoError(t, err)

		require.NoError(t, l.Remove(ctx, "welcome"))
		assert.False(t, src.Fresh(ctx))

		_, err = l.Load(ctx, "welcome")
		assert.ErrorIs(t, err, loader.ErrTemplateNotFound)
	})
}
