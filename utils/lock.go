package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"github.com/bsm/redislock"
)

const (
	LockTypeStockInput = "lock:stock-input"

	lockTTL = 30 * time.Second
)

var ErrLockNotObtained = errors.New("could not obtain lock")

// Release must be called once the critical section is done.
type Release func()

// AcquireLock serializes work on one resource key. It uses a Redis lock
// when Redis is connected so that all replicas agree, and an in-process
// keyed lock otherwise. It waits up to lockTTL or until ctx is done.
func AcquireLock(ctx context.Context, lockType string, id any, moduleName string, functionName string) (Release, error) {
	lockKey := fmt.Sprintf("%s:%v", lockType, id)
	logger := config.GetLogger()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, lockKey, lockTTL, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(lockTTL/(100*time.Millisecond))),
		})
		if errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(logger, moduleName, functionName, "Could not obtain lock", lockKey, err)
			return nil, ErrLockNotObtained
		} else if err != nil {
			config.LogError(logger, moduleName, functionName, "Error obtaining lock", lockKey, err)
			return nil, err
		}
		return func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				config.LogError(logger, moduleName, functionName, "Error releasing lock", lockKey, err)
			}
		}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, lockTTL)
	defer cancel()
	release, err := localLocks.lock(waitCtx, lockKey)
	if err != nil {
		config.LogError(logger, moduleName, functionName, "Could not obtain local lock", lockKey, err)
		return nil, ErrLockNotObtained
	}
	return release, nil
}

type keyedLock struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

var localLocks = &keyedLock{slots: map[string]*lockSlot{}}

func (k *keyedLock) lock(ctx context.Context, key string) (Release, error) {
	k.mu.Lock()
	slot := k.slots[key]
	if slot == nil {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		k.slots[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			k.unref(key, slot)
		})
	}, nil
}

func (k *keyedLock) unref(key string, slot *lockSlot) {
	k.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}
