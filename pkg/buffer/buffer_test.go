package buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs-jenkins-bot/mesos-stream/errors"
	"github.com/hs-jenkins-bot/mesos-stream/metric"
)

func TestBoundedBasicOperations(t *testing.T) {
	buf, err := NewBounded[string](3)
	require.NoError(t, err)
	defer buf.Close()

	assert.Equal(t, 0, buf.Size())
	assert.Equal(t, 3, buf.Capacity())
	assert.True(t, buf.IsEmpty())
	assert.False(t, buf.IsFull())

	require.NoError(t, buf.Write("first"))
	require.NoError(t, buf.Write("second"))
	require.NoError(t, buf.Write("third"))
	assert.True(t, buf.IsFull())

	item, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, "first", item)
	assert.Equal(t, 2, buf.Size())

	item, ok = buf.Read()
	require.True(t, ok)
	assert.Equal(t, "second", item)

	item, ok = buf.Read()
	require.True(t, ok)
	assert.Equal(t, "third", item)

	_, ok = buf.Read()
	assert.False(t, ok)
}

// Capacity 2, inputs A,B,C,D pushed faster than consumed: drop-oldest
// leaves C,D for the consumer with two overflow notifications for A,B.
func TestDropOldestKeepsNewest(t *testing.T) {
	var dropped []string
	buf, err := NewBounded[string](2,
		WithOverflowStrategy[string](DropOldest),
		WithDropCallback[string](func(item string) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)
	defer buf.Close()

	for _, in := range []string{"A", "B", "C", "D"} {
		require.NoError(t, buf.Write(in))
	}

	var observed []string
	for {
		item, ok := buf.Read()
		if !ok {
			break
		}
		observed = append(observed, item)
	}

	assert.Equal(t, []string{"C", "D"}, observed)
	assert.Equal(t, []string{"A", "B"}, dropped)
	assert.EqualValues(t, 2, buf.Stats().Overflows())
	assert.EqualValues(t, 2, buf.Stats().Drops())
}

// Same inputs under fail-fast: the 3rd write errors and only A,B are
// observed.
func TestFailFastRejectsThirdItem(t *testing.T) {
	buf, err := NewBounded[string](2, WithOverflowStrategy[string](FailFast))
	require.NoError(t, err)
	defer buf.Close()

	require.NoError(t, buf.Write("A"))
	require.NoError(t, buf.Write("B"))

	err = buf.Write("C")
	require.Error(t, err)
	assert.True(t, errors.IsOverflow(err))
	assert.ErrorIs(t, err, errors.ErrBufferOverflow)

	var observed []string
	for {
		item, ok := buf.Read()
		if !ok {
			break
		}
		observed = append(observed, item)
	}
	assert.Equal(t, []string{"A", "B"}, observed)
}

func TestDropNewestDiscardsIncoming(t *testing.T) {
	var dropped []int
	buf, err := NewBounded[int](2,
		WithOverflowStrategy[int](DropNewest),
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)
	defer buf.Close()

	for i := 1; i <= 4; i++ {
		require.NoError(t, buf.Write(i))
	}

	var observed []int
	for {
		item, ok := buf.Read()
		if !ok {
			break
		}
		observed = append(observed, item)
	}
	assert.Equal(t, []int{1, 2}, observed)
	assert.Equal(t, []int{3, 4}, dropped)
}

func TestUnboundedNeverDrops(t *testing.T) {
	buf, err := NewUnbounded[int]()
	require.NoError(t, err)
	defer buf.Close()

	assert.Equal(t, -1, buf.Capacity())
	assert.False(t, buf.IsFull())

	for i := 0; i < 10_000; i++ {
		require.NoError(t, buf.Write(i))
	}
	assert.Equal(t, 10_000, buf.Size())

	for i := 0; i < 10_000; i++ {
		item, ok := buf.Read()
		require.True(t, ok)
		require.Equal(t, i, item)
	}
	assert.True(t, buf.IsEmpty())
	assert.EqualValues(t, 0, buf.Stats().Drops())
}

func TestReadWaitBlocksUntilWrite(t *testing.T) {
	for _, tc := range []struct {
		name string
		make func() (Buffer[string], error)
	}{
		{"bounded", func() (Buffer[string], error) { return NewBounded[string](4) }},
		{"unbounded", func() (Buffer[string], error) { return NewUnbounded[string]() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := tc.make()
			require.NoError(t, err)
			defer buf.Close()

			got := make(chan string, 1)
			go func() {
				item, err := buf.ReadWait(context.Background())
				if err == nil {
					got <- item
				}
			}()

			time.Sleep(20 * time.Millisecond)
			require.NoError(t, buf.Write("wakeup"))

			select {
			case item := <-got:
				assert.Equal(t, "wakeup", item)
			case <-time.After(2 * time.Second):
				t.Fatal("ReadWait did not return after Write")
			}
		})
	}
}

func TestReadWaitContextCancel(t *testing.T) {
	buf, err := NewBounded[int](1)
	require.NoError(t, err)
	defer buf.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := buf.ReadWait(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadWait did not observe cancellation")
	}
}

func TestReadWaitDrainsAfterClose(t *testing.T) {
	buf, err := NewBounded[int](4)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Close())

	item, err := buf.ReadWait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, item)

	item, err = buf.ReadWait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, item)

	_, err = buf.ReadWait(context.Background())
	assert.ErrorIs(t, err, errors.ErrClosed)
}

func TestWriteAfterCloseFails(t *testing.T) {
	buf, err := NewBounded[int](1)
	require.NoError(t, err)
	require.NoError(t, buf.Close())

	assert.Error(t, buf.Write(1))
}

func TestClearInvokesDropCallback(t *testing.T) {
	var dropped []int
	buf, err := NewBounded[int](4,
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }))
	require.NoError(t, err)
	defer buf.Close()

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	buf.Clear()

	assert.Equal(t, []int{1, 2}, dropped)
	assert.True(t, buf.IsEmpty())
}

func TestConcurrentWritersAndReader(t *testing.T) {
	buf, err := NewUnbounded[int]()
	require.NoError(t, err)
	defer buf.Close()

	const writers = 8
	const perWriter = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = buf.Write(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		_, ok := buf.Read()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, writers*perWriter, count)
	assert.EqualValues(t, writers*perWriter, buf.Stats().Writes())
}

func TestBufferMetricsExported(t *testing.T) {
	reg := metric.NewRegistry()
	buf, err := NewBounded[int](2,
		WithOverflowStrategy[int](DropOldest),
		WithMetrics[int](reg, "receive"))
	require.NoError(t, err)
	defer buf.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, buf.Write(i))
	}

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		if len(mf.GetMetric()) != 1 {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}

	assert.Equal(t, float64(3), values["mesosstream_buffer_writes_total"])
	assert.Equal(t, float64(1), values["mesosstream_buffer_overflows_total"])
	assert.Equal(t, float64(1), values["mesosstream_buffer_drops_total"])
	assert.Equal(t, float64(2), values["mesosstream_buffer_size"])
}

func TestStatisticsSummary(t *testing.T) {
	buf, err := NewBounded[int](2)
	require.NoError(t, err)
	defer buf.Close()

	require.NoError(t, buf.Write(1))
	buf.Read()

	s := buf.Stats().Summary()
	assert.EqualValues(t, 1, s.Writes)
	assert.EqualValues(t, 1, s.Reads)
	assert.EqualValues(t, 0, s.CurrentSize)
	assert.EqualValues(t, 1, s.MaxSize)
}
