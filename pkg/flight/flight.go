// Package flight deduplicates concurrent work per key without letting one
// caller's cancellation fail the others.
package flight

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
)

// maxRejoins bounds how often a live caller retries after a shared call
// ended with a context error
const maxRejoins = 3

// Group runs fn once per key for all concurrent callers
type Group[T any] struct {
	g singleflight.Group
}

// Do runs fn under the first caller's ctx and shares its result.
// A caller whose own ctx is still live retries when the shared call failed
// only because the leading caller went away. Each caller stops waiting as
// soon as its own ctx is done.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		ch := g.g.DoChan(key, func() (interface{}, error) {
			return fn(ctx)
		})

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if ctx.Err() == nil && isContextErr(res.Err) && attempt < maxRejoins {
					continue
				}
				return zero, res.Err
			}
			return res.Val.(T), nil
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
