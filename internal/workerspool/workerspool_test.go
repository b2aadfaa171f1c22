package workerspool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_WaitToStart(t *testing.T) {
	pool := New().SetMaxParallelism(3)
	assert.True(t, pool.IsEnabled())
	assert.Equal(t, 3, pool.MaxParallelism())
	var running, maxRunning, done atomic.Int32
	for ii := 0; ii < 20; ii++ {
		pool.WaitToStart(func() {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			done.Add(1)
		})
	}
	pool.Wait()
	assert.Equal(t, int32(20), done.Load())
	assert.LessOrEqual(t, maxRunning.Load(), int32(3))
	assert.Equal(t, 0, pool.NumRunning())
}

func TestPool_NoParallelism(t *testing.T) {
	pool := New().SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	var count int
	pool.WaitToStart(func() { count++ })
	assert.Equal(t, 1, count, "task should have run inline")
	assert.Equal(t, 0, pool.NumRunning())
	pool.Wait()
}

func TestPool_Unlimited(t *testing.T) {
	pool := New().SetMaxParallelism(-1)
	assert.True(t, pool.IsEnabled())
	var count atomic.Int32
	for ii := 0; ii < 50; ii++ {
		pool.WaitToStart(func() { count.Add(1) })
	}
	pool.Wait()
	assert.Equal(t, int32(50), count.Load())
}
