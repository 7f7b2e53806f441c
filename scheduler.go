package liquidview

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/semaphore"
)

// Scheduler runs async renders on goroutines, at most limit at a time.
type Scheduler struct {
	sem   *semaphore.Weighted
	limit int64
	wg    sync.WaitGroup
}

// NewScheduler creates a Scheduler. A limit <= 0 uses GOMAXPROCS.
func NewScheduler(limit int64) *Scheduler {
	if limit <= 0 {
		limit = int64(runtime.GOMAXPROCS(0))
	}
	return &Scheduler{
		sem:   semaphore.NewWeighted(limit),
		limit: limit,
	}
}

// Limit returns the maximum number of concurrent tasks.
func (s *Scheduler) Limit() int64 { return s.limit }

// Go runs fn once a slot is free and returns its Future. If ctx is done
// before a slot frees up, the Future fails with ctx's error and fn never
// runs. A panic in fn fails the Future.
func (s *Scheduler) Go(ctx context.Context, fn func(context.Context) (string, error)) *Future {
	f := &Future{done: make(chan struct{})}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(f.done)

		if err := s.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer s.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				f.out, f.err = "", fmt.Errorf("liquidview: render panicked: %v", r)
			}
		}()
		f.out, f.err = fn(ctx)
	}()
	return f
}

// Wait blocks until every task started with Go has finished.
func (s *Scheduler) Wait() { s.wg.Wait() }

type schedulerKey struct{}

// WithScheduler returns a context whose async renders run on s.
func WithScheduler(ctx context.Context, s *Scheduler) context.Context {
	return context.WithValue(ctx, schedulerKey{}, s)
}

// SchedulerFrom returns the Scheduler carried by ctx.
func SchedulerFrom(ctx context.Context) (*Scheduler, bool) {
	s, ok := ctx.Value(schedulerKey{}).(*Scheduler)
	return s, ok && s != nil
}

// Future is the pending result of an async render.
type Future struct {
	done chan struct{}
	out  string
	err  error
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait returns the rendered text, or ctx's error if ctx ends first. The render
// itself keeps running after Wait gives up.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.out, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Send waits for the result and writes it as the HTML response of c.
func (f *Future) Send(c *fiber.Ctx) error {
	out, err := f.Wait(c.UserContext())
	if err != nil {
		return err
	}
	return sendHTML(c, out)
}
