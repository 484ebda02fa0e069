package logger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// sink is one destination. After its first failure it is skipped so the
// remaining sinks keep receiving lines.
type sink struct {
	w   *bufio.Writer
	err error
}

// asyncWriter fans log lines out to its sinks from a single goroutine.
// Lines are buffered while the queue is busy and flushed once it drains.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	sinks []*sink
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines:   make(chan []byte, 512),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, &sink{w: bufio.NewWriterSize(out, bufSize)})
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.flush()
				return
			}
			w.write(line)
			if len(w.lines) == 0 {
				w.flush()
			}
		case ack := <-w.flushes:
			w.drain()
			ack <- w.flush()
		}
	}
}

// drain writes the lines queued before a flush request.
func (w *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			w.write(line)
		default:
			return
		}
	}
}

func (w *asyncWriter) write(line []byte) {
	for i, s := range w.sinks {
		if s.err != nil {
			continue
		}
		if _, err := s.w.Write(line); err != nil {
			w.fail(i, s, err)
		}
	}
}

func (w *asyncWriter) flush() error {
	var errs []error
	for i, s := range w.sinks {
		if s.err != nil {
			errs = append(errs, s.err)
			continue
		}
		if err := s.w.Flush(); err != nil {
			w.fail(i, s, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) fail(i int, s *sink, err error) {
	s.err = err
	fmt.Fprintf(os.Stderr, "logger: sink %d disabled: %v\n", i, err)
}

// Write queues a copy of p. It blocks while the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush waits until every queued line reached the sinks.
func (w *asyncWriter) Flush() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return errWriterClosed
	}
	ack := make(chan error, 1)
	w.flushes <- ack
	w.mu.RUnlock()
	return <-ack
}

// Close drains the queue and returns the errors of failed sinks.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.mu.Unlock()
	<-w.done

	var errs []error
	for _, s := range w.sinks {
		if s.err != nil {
			errs = append(errs, s.err)
		}
	}
	return errors.Join(errs...)
}
