package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_AppendOrder(t *testing.T) {
	t.Parallel()

	b := NewBuffer[int](0)
	for i := 0; i < 10; i++ {
		b.Append(i)
	}

	require.Equal(t, 10, b.Len())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, b.Snapshot())
}

func TestBuffer_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	b := NewBuffer[int](4)
	b.Append(1)
	b.Append(2)

	snap := b.Snapshot()
	snap[0] = 99
	b.Append(3)

	assert.Equal(t, []int{1, 2, 3}, b.Snapshot())
	assert.Equal(t, []int{99, 2}, snap)
}

func TestBuffer_EmptySnapshotNotNil(t *testing.T) {
	t.Parallel()

	b := NewBuffer[string](0)
	snap := b.Snapshot()
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}

func TestBuffer_Clear(t *testing.T) {
	t.Parallel()

	b := NewBuffer[int](0)
	b.Append(1)
	b.Append(2)
	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())

	b.Append(7)
	assert.Equal(t, []int{7}, b.Snapshot())
}

func TestBuffer_ClearReleasesStorage(t *testing.T) {
	t.Parallel()

	b := NewBuffer[int](16)
	for i := range 10_000 {
		b.Append(i)
	}
	b.Clear()

	assert.Zero(t, cap(b.samples))
	assert.NotNil(t, b.Snapshot())
}

type record struct {
	producer int
	seq      int
}

func TestBuffer_ConcurrentAppendsConserveCount(t *testing.T) {
	t.Parallel()

	const producers = 8
	const perProducer = 500

	b := NewBuffer[record](0)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	readerDone := make(chan struct{})

	// A concurrent reader must never observe a shrinking buffer.
	go func() {
		defer close(readerDone)
		last := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			n := len(b.Snapshot())
			if n < last {
				t.Errorf("snapshot shrank from %d to %d", last, n)
				return
			}
			last = n
		}
	}()

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Append(record{producer: p, seq: i})
			}
		}(p)
	}
	wg.Wait()
	close(stop)
	<-readerDone

	snap := b.Snapshot()
	require.Len(t, snap, producers*perProducer)

	// No record duplicated or dropped, and each producer's records stay in
	// the order that producer appended them.
	seen := make(map[record]bool, len(snap))
	next := make([]int, producers)
	for _, r := range snap {
		assert.False(t, seen[r], "duplicate record %+v", r)
		seen[r] = true
		assert.Equal(t, next[r.producer], r.seq, "producer %d out of order", r.producer)
		next[r.producer] = r.seq + 1
	}
	for p := 0; p < producers; p++ {
		assert.Equal(t, perProducer, next[p])
	}
}
