package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallel2(t *testing.T) {
	a, b, err := Parallel2(context.Background(),
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (string, error) { return "two", nil },
	)

	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, "two", b)
}

func TestParallel3_FirstErrorWins(t *testing.T) {
	_, _, _, err := Parallel3(context.Background(),
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (int, error) { return 0, errRemote },
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	)

	require.ErrorIs(t, err, errRemote)
}

func TestParallelLimit_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	fns := make([]func(context.Context) (int, error), 10)
	for i := range fns {
		fns[i] = func(context.Context) (int, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)

			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)

			return i, nil
		}
	}

	got, err := ParallelLimit(context.Background(), 3, fns...)

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}
