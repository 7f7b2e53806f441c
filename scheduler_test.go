package liquidview_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/liquidview"
	"github.com/karloscodes/liquidview/signals"
	"github.com/karloscodes/liquidview/testsupport"
)

func TestRenderAsync_RequiresScheduler(t *testing.T) {
	_, _, h := attach(t, map[string]string{"t": "x"}, nil)
	ctx := context.Background()

	_, err := h.RenderAsync(ctx, "t", nil)
	assert.ErrorIs(t, err, liquidview.ErrUnsupportedMode)

	_, err = h.RenderStringAsync(ctx, "x", nil)
	assert.ErrorIs(t, err, liquidview.ErrUnsupportedMode)
}

func TestRenderAsync(t *testing.T) {
	app, ext, _ := attach(t, map[string]string{"hello": "Hello, {{ name }}!"}, nil)
	rec := testsupport.NewRecorder(t, ext.Signals())
	ctx := liquidview.WithScheduler(context.Background(), liquidview.NewScheduler(2))

	f, err := ext.Registry().RenderAsync(ctx, app, "hello", map[string]any{"name": "World"})
	require.NoError(t, err)

	out, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", out)
	assert.Equal(t, []string{signals.BeforeRenderTemplate, signals.TemplateRendered}, rec.Names())
}

func TestRenderStringAsync(t *testing.T) {
	app, ext, _ := attach(t, nil, nil)
	ctx := liquidview.WithScheduler(context.Background(), liquidview.NewScheduler(1))

	f, err := ext.Registry().RenderStringAsync(ctx, app, "{{ 1 | plus: 2 }}", nil)
	require.NoError(t, err)

	<-f.Done()
	out, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", out)
}

func TestRenderAsync_NotFoundSurfacesFromFuture(t *testing.T) {
	_, _, h := attach(t, nil, nil)
	ctx := liquidview.WithScheduler(context.Background(), liquidview.NewScheduler(1))

	f, err := h.RenderAsync(ctx, "missing", nil)
	require.NoError(t, err)

	_, err = f.Wait(context.Background())
	assert.ErrorIs(t, err, liquidview.ErrTemplateNotFound)
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	s := liquidview.NewScheduler(2)
	assert.Equal(t, int64(2), s.Limit())

	var running, peak int32
	release := make(chan struct{})
	var futures []*liquidview.Future
	for i := 0; i < 6; i++ {
		futures = append(futures, s.Go(context.Background(), func(context.Context) (string, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return "ok", nil
		}))
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	s.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	for _, f := range futures {
		out, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
}

func TestScheduler_CancelledBeforeSlot(t *testing.T) {
	s := liquidview.NewScheduler(1)
	started := make(chan struct{})
	block := make(chan struct{})
	defer close(block)
	s.Go(context.Background(), func(context.Context) (string, error) {
		close(started)
		<-block
		return "", nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	f := s.Go(ctx, func(context.Context) (string, error) {
		ran.Store(true)
		return "", nil
	})
	cancel()

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestScheduler_Panic(t *testing.T) {
	s := liquidview.NewScheduler(1)
	f := s.Go(context.Background(), func(context.Context) (string, error) {
		panic("boom")
	})

	_, err := f.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	s := liquidview.NewScheduler(1)
	block := make(chan struct{})
	defer close(block)
	f := s.Go(context.Background(), func(context.Context) (string, error) {
		<-block
		return "late", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRenderAsync_Concurrent(t *testing.T) {
	_, _, h := attach(t, map[string]string{"n": "{{ n }}"}, nil)
	ctx := liquidview.WithScheduler(context.Background(), liquidview.NewScheduler(4))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := h.RenderAsync(ctx, "n", map[string]any{"n": i})
			if !assert.NoError(t, err) {
				return
			}
			_, err = f.Wait(context.Background())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}
