package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingTask struct {
	counter *atomic.Int32
	wg      *sync.WaitGroup
}

func (t *countingTask) Execute() {
	t.counter.Add(1)
	t.wg.Done()
}

type panicTask struct {
	wg *sync.WaitGroup
}

func (t *panicTask) Execute() {
	defer t.wg.Done()
	panic("boom")
}

func TestPoolExecutesTasks(t *testing.T) {
	pool := NewPool(4, 16)
	pool.Start()
	defer pool.Stop()

	var counter atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := pool.Submit(&countingTask{counter: &counter, wg: &wg})
		assert.True(t, ok)
	}

	wg.Wait()
	assert.Equal(t, int32(10), counter.Load())
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := NewPool(1, 4)
	pool.Start()
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	assert.True(t, pool.Submit(&panicTask{wg: &wg}))
	wg.Wait()

	// pool still works after a panicking task
	var counter atomic.Int32
	wg.Add(1)
	assert.True(t, pool.Submit(&countingTask{counter: &counter, wg: &wg}))
	wg.Wait()
	assert.Equal(t, int32(1), counter.Load())
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start()
	pool.Stop()

	var counter atomic.Int32
	var wg sync.WaitGroup
	ok := pool.SubmitBlocking(&countingTask{counter: &counter, wg: &wg}, 50*time.Millisecond)
	assert.False(t, ok)
}

func TestThumbKey(t *testing.T) {
	assert.Equal(t, "thumbs/rap-9/avant/123_mur.webp", ThumbKey("rap-9/avant/123_mur.jpg"))
	assert.Equal(t, "thumbs/photo.webp", ThumbKey("photo.jpg"))
}
