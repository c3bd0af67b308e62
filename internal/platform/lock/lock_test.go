// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/folio/internal/platform/lock"
)

/*
TestKeyedMutex_Exclusive ensures holders of the same key never overlap.
*/
func TestKeyedMutex_Exclusive(t *testing.T) {
	keyed := lock.NewKeyedMutex()

	var active, maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := keyed.Acquire(context.Background(), "book-1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			current := atomic.AddInt32(&active, 1)
			for {
				seen := atomic.LoadInt32(&maxActive)
				if current <= seen || atomic.CompareAndSwapInt32(&maxActive, seen, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, keyed.Len())
}

/*
TestKeyedMutex_IndependentKeys ensures different keys do not block each other.
*/
func TestKeyedMutex_IndependentKeys(t *testing.T) {
	keyed := lock.NewKeyedMutex()

	releaseA, err := keyed.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	releaseB, err := keyed.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

/*
TestKeyedMutex_ContextCanceled stops waiting when the context ends.
*/
func TestKeyedMutex_ContextCanceled(t *testing.T) {
	keyed := lock.NewKeyedMutex()

	release, err := keyed.Acquire(context.Background(), "book")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = keyed.Acquire(ctx, "book")
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	assert.Equal(t, 0, keyed.Len())

	again, err := keyed.Acquire(context.Background(), "book")
	require.NoError(t, err)
	again()
}
