package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 9}, Canonical([]int64{9, 2, 1, 2}))
	assert.Empty(t, Canonical(nil))
}

func TestMemoryLocker_BlocksSameAccount(t *testing.T) {
	l := NewMemoryLocker()

	release, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // no-op

	again, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, l.Tracked())
}

func TestMemoryLocker_DifferentAccountsDoNotBlock(t *testing.T) {
	l := NewMemoryLocker()

	release1, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer release1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release2, err := l.Acquire(ctx, 2)
	require.NoError(t, err)
	release2()
}

func TestMemoryLocker_FailedAcquireReleasesPartialHold(t *testing.T) {
	l := NewMemoryLocker()

	release2, err := l.Acquire(context.Background(), 2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, 2, 1)
	require.Error(t, err)

	// Account 1 was taken first and must have been given back.
	release1, err := l.Acquire(context.Background(), 1)
	require.NoError(t, err)
	release1()
	release2()
	assert.Equal(t, 0, l.Tracked())
}

func TestMemoryLocker_OppositeOrderNoDeadlock(t *testing.T) {
	l := NewMemoryLocker()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := []int64{1, 2}
			if i%2 == 0 {
				ids = []int64{2, 1}
			}
			release, err := l.Acquire(ctx, ids...)
			if !assert.NoError(t, err) {
				return
			}
			counter++
			release()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
	assert.Equal(t, 0, l.Tracked())
}
