package readiness

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// every channel must report closed, forever, once closed
func TestChannel_monotonicClose(t *testing.T) {
	for _, tc := range []struct {
		name string
		ch   func() Channel
	}{
		{`Always`, func() Channel { return NewAlways() }},
		{`Never`, func() Channel { return NewNever() }},
		{`Timer`, func() Channel { return NewTimer(time.Millisecond) }},
		{`Generator`, func() Channel { return NewGenerator(func() int { return 1 }) }},
		{`Queue`, func() Channel {
			q := NewQueue[string]()
			q.Write(`pending`)
			return q
		}},
		{`Latch`, func() Channel {
			l := NewLatch[string]()
			l.Write(`pending`)
			return l
		}},
		{`Buffer`, func() Channel {
			b := NewBuffer()
			_, _ = b.Write([]byte(`pending`))
			return b
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ch := tc.ch()
			require.NoError(t, ch.Close())
			for range 3 {
				assert.Equal(t, StateClosed, ch.Poll())
				assert.Equal(t, StateClosed, ch.Wait(time.Millisecond*5))
				require.NoError(t, ch.Close())
			}
		})
	}
}

func TestAlways(t *testing.T) {
	ch := NewAlways()
	for range 5 {
		assert.Equal(t, StateReady, ch.Wait(time.Hour))
		assert.Equal(t, StateReady, ch.Poll())
	}
	require.NoError(t, ch.Close())
	assert.Equal(t, StateClosed, ch.Wait(time.Hour))
}

func TestNever(t *testing.T) {
	ch := NewNever()
	start := time.Now()
	assert.Equal(t, StateWaiting, ch.Wait(time.Millisecond*10))
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond*10)
	assert.Equal(t, StateWaiting, ch.Poll())
	require.NoError(t, ch.Close())
	assert.Equal(t, StateClosed, ch.Wait(time.Millisecond*10))
}

func TestNever_closeWakesWaiter(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)
	ch := NewNever()
	out := make(chan State)
	go func() { out <- ch.Wait(time.Hour) }()
	time.Sleep(time.Millisecond * 20)
	require.NoError(t, ch.Close())
	select {
	case s := <-out:
		assert.Equal(t, StateClosed, s)
	case <-time.After(time.Second * 3):
		t.Fatal(`waiter not woken`)
	}
}

func TestQueue(t *testing.T) {
	q := NewQueue[string]()
	assert.Equal(t, StateWaiting, q.Poll())
	assert.True(t, q.Write(`Hello`))
	assert.True(t, q.Write(`World`))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, StateReady, q.Poll())

	v, ok := q.Read()
	require.True(t, ok)
	assert.Equal(t, `Hello`, v)
	v, ok = q.Read()
	require.True(t, ok)
	assert.Equal(t, `World`, v)

	assert.Equal(t, StateWaiting, q.Poll())
	_, ok = q.Read()
	assert.False(t, ok)

	require.NoError(t, q.Close())
	assert.False(t, q.Write(`late`))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_closeDiscards(t *testing.T) {
	q := NewQueue[int]()
	q.Write(1)
	q.Write(2)
	require.NoError(t, q.Close())
	_, ok := q.Read()
	assert.False(t, ok)
	assert.Equal(t, StateClosed, q.Poll())
}

func TestQueue_writeWakesWaiter(t *testing.T) {
	defer checkNumGoroutines(time.Second * 3)(t)
	q := NewQueue[int]()
	out := make(chan State)
	go func() { out <- q.Wait(time.Hour) }()
	time.Sleep(time.Millisecond * 20)
	q.Write(1)
	select {
	case s := <-out:
		assert.Equal(t, StateReady, s)
	case <-time.After(time.Second * 3):
		t.Fatal(`waiter not woken`)
	}
}

func TestQueue_concurrent(t *testing.T) {
	const writers, each = 4, 250
	q := NewQueue[int]()
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				q.Write(w*each + i)
			}
		}()
	}
	seen := make(map[int]struct{})
	for len(seen) < writers*each {
		if q.Wait(time.Second) != StateReady {
			continue
		}
		if v, ok := q.Read(); ok {
			seen[v] = struct{}{}
		}
	}
	wg.Wait()
	assert.Equal(t, StateWaiting, q.Poll())
}

func TestLatch(t *testing.T) {
	t.Run(`single`, func(t *testing.T) {
		l := NewLatch[string]()
		assert.Equal(t, StateWaiting, l.Poll())
		l.Write(`Hello`)
		assert.Equal(t, StateReady, l.Poll())
		v, ok := l.Read()
		require.True(t, ok)
		assert.Equal(t, `Hello`, v)
		assert.Equal(t, StateWaiting, l.Poll())
		_, ok = l.Read()
		assert.False(t, ok)
	})

	t.Run(`dedup`, func(t *testing.T) {
		l := NewLatch[string]()
		l.Write(`Hello`)
		l.Write(`Hello`)
		l.Write(`World`)
		v, ok := l.Read()
		require.True(t, ok)
		assert.Equal(t, `World`, v)
		assert.Equal(t, StateWaiting, l.Poll())
	})

	t.Run(`same value after read`, func(t *testing.T) {
		l := NewLatch[int]()
		l.Write(1)
		_, _ = l.Read()
		l.Write(1)
		assert.Equal(t, StateWaiting, l.Poll())
		l.Write(2)
		assert.Equal(t, StateReady, l.Poll())
		l.Write(1)
		assert.Equal(t, StateWaiting, l.Poll())
	})

	t.Run(`peek`, func(t *testing.T) {
		l := NewLatch[int]()
		_, ok := l.Peek()
		assert.False(t, ok)
		l.Write(7)
		v, ok := l.Peek()
		assert.True(t, ok)
		assert.Equal(t, 7, v)
		assert.Equal(t, StateReady, l.Poll())
	})

	t.Run(`closed`, func(t *testing.T) {
		l := NewLatch[int]()
		require.NoError(t, l.Close())
		assert.False(t, l.Write(1))
	})
}

func TestBuffer(t *testing.T) {
	b := NewBuffer()

	var dst []byte
	dst = ReadAppend(b, dst)
	assert.Empty(t, dst)
	assert.Equal(t, 0, b.Read(make([]byte, 8)))
	assert.Equal(t, StateWaiting, b.Poll())

	n, err := b.Write([]byte(`Hello`))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	_, err = b.Write([]byte(`World`))
	require.NoError(t, err)
	assert.Equal(t, 10, b.Len())

	for b.Poll() == StateReady {
		dst = ReadAppend(b, dst)
	}
	assert.Equal(t, `HelloWorld`, string(dst))
	assert.Equal(t, StateWaiting, b.Poll())
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_partialReads(t *testing.T) {
	b := NewBuffer()
	_, _ = b.Write([]byte(`abcdefgh`))
	p := make([]byte, 3)
	var got []byte
	for {
		n := b.Read(p)
		if n == 0 {
			break
		}
		got = append(got, p[:n]...)
		// interleave writes with reads, exercising compaction
		if len(got) == 3 {
			_, _ = b.Write([]byte(`ij`))
		}
	}
	assert.Equal(t, `abcdefghij`, string(got))
}

func TestBuffer_closeWrite(t *testing.T) {
	b := NewBuffer()
	b.SetChunkSize(2)
	assert.Equal(t, 2, b.ChunkSize())
	_, _ = b.Write([]byte(`abc`))
	require.NoError(t, b.CloseWrite())

	_, err := b.Write([]byte(`d`))
	assert.ErrorIs(t, err, ErrClosed)

	assert.Equal(t, StateReady, b.Poll())
	assert.Equal(t, `abc`, string(ReadAll(b)))
	assert.Equal(t, StateClosed, b.Poll())
}

func TestBuffer_closeWriteEmpty(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.CloseWrite())
	assert.Equal(t, StateClosed, b.Poll())
}

func TestStreamBase_defaultChunkSize(t *testing.T) {
	b := NewBuffer()
	assert.Equal(t, DefaultChunkSize, b.ChunkSize())
	b.SetChunkSize(-1)
	assert.Equal(t, DefaultChunkSize, b.ChunkSize())
}

func TestTimer(t *testing.T) {
	tm := NewTimer(time.Millisecond * 25)
	assert.Equal(t, time.Millisecond*25, tm.Interval())
	assert.Equal(t, StateWaiting, tm.Wait(time.Millisecond))
	assert.Equal(t, StateReady, tm.Wait(time.Millisecond*100))
	assert.Equal(t, StateWaiting, tm.Poll())
}

func TestTimer_skipsMissedTicks(t *testing.T) {
	tm := NewTimer(time.Millisecond * 25)
	time.Sleep(time.Millisecond * 200)
	assert.Equal(t, StateReady, tm.Wait(time.Millisecond*100))
	assert.Equal(t, StateWaiting, tm.Poll())
}

func TestTimer_flush(t *testing.T) {
	tm := NewTimer(time.Millisecond * 10)
	time.Sleep(time.Millisecond * 30)
	tm.Flush()
	assert.Equal(t, StateWaiting, tm.Poll())
}

func TestTimer_closeWakesWaiter(t *testing.T) {
	tm := NewTimer(time.Hour)
	go func() {
		time.Sleep(time.Millisecond * 20)
		_ = tm.Close()
	}()
	start := time.Now()
	assert.Equal(t, StateClosed, tm.Wait(time.Minute))
	assert.Less(t, time.Since(start), time.Second*10)
}

func TestNewTimer_panics(t *testing.T) {
	assert.PanicsWithValue(t, `readiness: non-positive timer interval`, func() { NewTimer(0) })
}

func TestGenerator(t *testing.T) {
	var n int
	g := NewGenerator(func() int {
		n++
		return n
	})
	for i := 1; i <= 3; i++ {
		assert.Equal(t, StateReady, g.Wait(time.Hour))
		v, ok := g.Read()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	require.NoError(t, g.Close())
	_, ok := g.Read()
	assert.False(t, ok)
	assert.PanicsWithValue(t, `readiness: nil producer`, func() { NewGenerator[int](nil) })
}

func TestState_String(t *testing.T) {
	assert.Equal(t, `Closed`, StateClosed.String())
	assert.Equal(t, `Waiting`, StateWaiting.String())
	assert.Equal(t, `Ready`, StateReady.String())
	assert.Equal(t, `Unknown`, State(99).String())
	assert.Equal(t, `sync`, ModeSync.String())
	assert.Equal(t, `async`, ModeAsync.String())
	assert.Equal(t, `invalid`, Mode(0).String())
}

func TestQueue_closeWrite(t *testing.T) {
	q := NewQueue[string]()
	q.Write(`a`)
	q.Write(`b`)
	require.NoError(t, q.CloseWrite())
	assert.False(t, q.Write(`c`))
	assert.Equal(t, 2, q.Len())

	var got []string
	for q.Wait(time.Second) == StateReady {
		v, ok := q.Read()
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, []string{`a`, `b`}, got)
	assert.Equal(t, StateClosed, q.Poll())

	empty := NewQueue[int]()
	require.NoError(t, empty.CloseWrite())
	assert.Equal(t, StateClosed, empty.Poll())
}
