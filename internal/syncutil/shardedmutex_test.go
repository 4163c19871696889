package syncutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_MutualExclusion(t *testing.T) {
	var sm ShardedMutex

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := sm.Lock(42)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutex_IndependentKeys(t *testing.T) {
	var sm ShardedMutex

	// Find a key that lands in a different shard than key 0.
	other := int64(-1)
	for key := int64(1); key < 1000; key++ {
		if sm.shard(key) != sm.shard(0) {
			other = key
			break
		}
	}
	assert.NotEqual(t, int64(-1), other, "expected some key in a different shard")

	// Holding one key must not block a key in a different shard.
	unlock1 := sm.Lock(0)
	defer unlock1()

	done := make(chan struct{})
	go func() {
		unlock := sm.Lock(other)
		unlock()
		close(done)
	}()
	<-done
}
