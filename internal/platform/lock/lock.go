// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package lock serializes work on a single key, such as one book id.

Two implementations are provided:

  - [KeyedMutex]: in-process, for a single API replica
  - [RedisLocker]: a Redis lease shared by every replica

Both honour context cancellation while waiting.
*/
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when the wait for a lock ends without owning it.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker grants exclusive access to a key until release is called.
type Locker interface {
	Acquire(context context.Context, key string) (release func(), err error)
}

// # In-process lock

// KeyedMutex is a set of mutexes created on demand, one per key.
// Entries are removed once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	token chan struct{}
	refs  int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

/*
Acquire blocks until key is free or context is done.

Returns:
  - func(): Release; safe to call more than once
  - error: context error wrapped with ErrNotAcquired
*/
func (keyed *KeyedMutex) Acquire(context context.Context, key string) (func(), error) {
	keyed.mu.Lock()
	entry, ok := keyed.slots[key]
	if !ok {
		entry = &slot{token: make(chan struct{}, 1)}
		keyed.slots[key] = entry
	}
	entry.refs++
	keyed.mu.Unlock()

	select {
	case entry.token <- struct{}{}:
	case <-context.Done():
		keyed.forget(key, entry)
		return nil, errors.Join(ErrNotAcquired, context.Err())
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-entry.token
			keyed.forget(key, entry)
		})
	}
	return release, nil
}

func (keyed *KeyedMutex) forget(key string, entry *slot) {
	keyed.mu.Lock()
	defer keyed.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(keyed.slots, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (keyed *KeyedMutex) Len() int {
	keyed.mu.Lock()
	defer keyed.mu.Unlock()
	return len(keyed.slots)
}
