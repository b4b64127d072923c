package engine

import (
	"bufio"
	"io"
	"sync"
)

// flusher owns the watch writer. Writers fill a buffer and wake the actor
// goroutine, which flushes it. The wake-up channel holds one signal, so a
// burst of writes costs one flush.
type flusher struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	err    error
	closed bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newFlusher(w io.Writer) *flusher {
	f := &flusher{
		buf:  bufio.NewWriter(w),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *flusher) run() {
	defer close(f.done)
	for range f.wake {
		f.flush()
	}
}

func (f *flusher) flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.buf.Flush(); err != nil && f.err == nil {
		f.err = err
	}
}

// Write buffers p and schedules a flush. It only writes through when p
// does not fit in the buffer.
func (f *flusher) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := f.buf.Write(p)

	select {
	case f.wake <- struct{}{}:
	default:
	}
	return n, err
}

// Close stops the actor after a final flush and returns the first write
// error seen.
func (f *flusher) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.wake)
		f.mu.Unlock()
		<-f.done
		f.flush()
	})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
