package diagnostics

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"mgmtd/internal/domain"
)

func TestRingBufferSnapshotOrder(t *testing.T) {
	buffer := MustRingBuffer[int](3)
	buffer.Add(1)
	buffer.Add(2)
	buffer.Add(3)
	buffer.Add(4)

	snapshot := buffer.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 items, got %d", len(snapshot))
	}
	if snapshot[0] != 2 || snapshot[1] != 3 || snapshot[2] != 4 {
		t.Fatalf("unexpected snapshot order: %+v", snapshot)
	}
}

func TestNewRingBufferRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		buffer, err := NewRingBuffer[string](capacity)
		require.Nil(t, buffer)
		require.ErrorIs(t, err, domain.ErrInvalidCapacity)
		code, ok := domain.CodeFrom(err)
		require.True(t, ok)
		require.Equal(t, domain.CodeInvalidArgument, code)
	}
}

func TestRingBufferEmpty(t *testing.T) {
	buffer := MustRingBuffer[string](4)
	require.Equal(t, 0, buffer.Size())
	snapshot := buffer.Snapshot()
	require.NotNil(t, snapshot)
	require.Empty(t, snapshot)
}

func TestRingBufferWordsScenario(t *testing.T) {
	words := []string{
		"One", "Two", "Three", "Four", "Five", "Six", "Seven",
		"Eight", "Nine", "Ten", "Eleven", "Twelve", "Thirteen", "Fourteen",
	}
	buffer := MustRingBuffer[string](6)
	for _, word := range words[:6] {
		buffer.Add(word)
	}
	require.Equal(t, words[:6], buffer.Snapshot())

	buffer.Add(words[6])
	require.Equal(t, []string{"Two", "Three", "Four", "Five", "Six", "Seven"}, buffer.Snapshot())

	for _, word := range words[7:] {
		buffer.Add(word)
	}
	require.Equal(t, []string{"Nine", "Ten", "Eleven", "Twelve", "Thirteen", "Fourteen"}, buffer.Snapshot())
	require.Equal(t, 6, buffer.Size())
}

func TestRingBufferCapacityOne(t *testing.T) {
	buffer := MustRingBuffer[int](1)
	for i := 0; i < 5; i++ {
		buffer.Add(i)
		require.Equal(t, []int{i}, buffer.Snapshot())
		require.Equal(t, 1, buffer.Size())
		require.Equal(t, 1, buffer.Capacity())
	}
}

func TestRingBufferCapacityIsFixed(t *testing.T) {
	buffer := MustRingBuffer[int](4)
	require.Equal(t, 4, buffer.Capacity())
	for i := 0; i < 10; i++ {
		buffer.Add(i)
	}
	require.Equal(t, 4, buffer.Capacity())
	require.Equal(t, buffer.Capacity(), buffer.Size())

	var missing *RingBuffer[int]
	require.Zero(t, missing.Capacity())
}

func TestRingBufferKeepsZeroValues(t *testing.T) {
	buffer := MustRingBuffer[*int](3)
	one := 1
	buffer.Add(nil)
	buffer.Add(&one)
	buffer.Add(nil)
	snapshot := buffer.Snapshot()
	require.Len(t, snapshot, 3)
	require.Nil(t, snapshot[0])
	require.Equal(t, &one, snapshot[1])
	require.Nil(t, snapshot[2])
}

func TestRingBufferSnapshotIsCopy(t *testing.T) {
	buffer := MustRingBuffer[int](2)
	buffer.Add(1)
	snapshot := buffer.Snapshot()
	snapshot[0] = 99
	require.Equal(t, []int{1}, buffer.Snapshot())
}

func TestRingBufferProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 64).Draw(t, "capacity")
		items := rapid.SliceOf(rapid.Int()).Draw(t, "items")

		buffer := MustRingBuffer[int](capacity)
		for _, item := range items {
			buffer.Add(item)
		}

		expected := items
		if len(items) > capacity {
			expected = items[len(items)-capacity:]
		}
		if buffer.Size() != len(expected) {
			t.Fatalf("size %d, expected %d", buffer.Size(), len(expected))
		}
		first := buffer.Snapshot()
		if len(first) != len(expected) {
			t.Fatalf("snapshot length %d, expected %d", len(first), len(expected))
		}
		for i := range expected {
			if first[i] != expected[i] {
				t.Fatalf("snapshot[%d] = %d, expected %d", i, first[i], expected[i])
			}
		}
		second := buffer.Snapshot()
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("repeated snapshot differs at %d", i)
			}
		}
	})
}

func TestRingBufferConcurrentProducers(t *testing.T) {
	const (
		producers = 8
		perWorker = 500
		capacity  = 100
	)
	buffer := MustRingBuffer[string](capacity)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				buffer.Add(fmt.Sprintf("%d-%d", p, i))
			}
		}(p)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			assertConsistentSnapshot(t, buffer.Snapshot(), capacity)
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	snapshot := buffer.Snapshot()
	require.Len(t, snapshot, min(producers*perWorker, capacity))
	assertConsistentSnapshot(t, snapshot, capacity)
}

// assertConsistentSnapshot checks there are no duplicates, no empty slots and
// that each producer's items appear in the order they were added.
func assertConsistentSnapshot(t *testing.T, snapshot []string, capacity int) {
	t.Helper()
	if len(snapshot) > capacity {
		t.Errorf("snapshot has %d items, capacity %d", len(snapshot), capacity)
		return
	}
	seen := make(map[string]struct{}, len(snapshot))
	last := make(map[int]int)
	for _, item := range snapshot {
		if item == "" {
			t.Errorf("snapshot contains an empty slot")
			return
		}
		if _, dup := seen[item]; dup {
			t.Errorf("duplicate item %q", item)
			return
		}
		seen[item] = struct{}{}
		var producer, seq int
		if _, err := fmt.Sscanf(item, "%d-%d", &producer, &seq); err != nil {
			t.Errorf("unexpected item %q", item)
			return
		}
		if prev, ok := last[producer]; ok && seq <= prev {
			t.Errorf("producer %d out of order: %d after %d", producer, seq, prev)
			return
		}
		last[producer] = seq
	}
}

func TestAsyncBufferDropped(t *testing.T) {
	buffer, err := NewAsyncBuffer[int](1, 1)
	require.NoError(t, err)
	buffer.Add(1)
	buffer.Add(2)
	if buffer.Dropped() == 0 {
		t.Fatalf("expected dropped entries")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	buffer.Start(ctx)
	buffer.Add(3)
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(buffer.Snapshot()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected snapshot entries")
}

func TestNewAsyncBufferRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -3} {
		buffer, err := NewAsyncBuffer[int](capacity, 4)
		require.Nil(t, buffer)
		require.ErrorIs(t, err, domain.ErrInvalidCapacity)
		code, ok := domain.CodeFrom(err)
		require.True(t, ok)
		require.Equal(t, domain.CodeInvalidArgument, code)
	}
}

func TestAsyncBufferQueueDefaultsToCapacity(t *testing.T) {
	buffer, err := NewAsyncBuffer[int](3, 0)
	require.NoError(t, err)
	require.Equal(t, 3, buffer.Capacity())
	for i := 0; i < 4; i++ {
		buffer.Add(i)
	}
	require.Equal(t, uint64(1), buffer.Dropped())

	var missing *AsyncBuffer[int]
	missing.Add(1)
	require.Empty(t, missing.Snapshot())
	require.Zero(t, missing.Capacity())
}
