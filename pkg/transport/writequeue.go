package transport

import (
	"bufio"
	"context"
	"io"
	"sync"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
)

type writeJob struct {
	data   []byte
	result chan error
}

// WriteQueue serializes writes to a stream. A single goroutine owns the
// writer; each message goes out as one write of payload plus newline.
type WriteQueue struct {
	raw     io.Writer
	w       *bufio.Writer
	jobs    chan writeJob
	done    chan struct{}
	once    sync.Once
	onWrite func([]byte)
}

// NewWriteQueue starts the writer goroutine. onWrite, if not nil, is called
// with each payload after it has been written.
func NewWriteQueue(w io.Writer, size int, onWrite func([]byte)) *WriteQueue {
	if size < 0 {
		size = 0
	}
	q := &WriteQueue{
		raw:     w,
		w:       bufio.NewWriter(w),
		jobs:    make(chan writeJob, size),
		done:    make(chan struct{}),
		onWrite: onWrite,
	}
	go q.run()
	return q
}

func (q *WriteQueue) run() {
	for {
		select {
		case <-q.done:
			return
		case job := <-q.jobs:
			job.result <- q.write(job.data)
		}
	}
}

func (q *WriteQueue) write(data []byte) error {
	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, data...)
	frame = append(frame, '\n')

	if _, err := q.w.Write(frame); err != nil {
		q.w.Reset(q.raw)
		return err
	}
	if err := q.w.Flush(); err != nil {
		// bufio keeps write errors sticky; reset so later messages are still attempted
		q.w.Reset(q.raw)
		return err
	}
	if q.onWrite != nil {
		q.onWrite(data)
	}
	return nil
}

// Write enqueues data and waits until it has been written or ctx is done.
// A message that was already queued when ctx ends is still written; only
// the caller stops waiting for it.
func (q *WriteQueue) Write(ctx context.Context, data []byte) error {
	job := writeJob{data: data, result: make(chan error, 1)}

	select {
	case <-q.done:
		return acperrors.ErrConnectionClosed
	default:
	}

	select {
	case q.jobs <- job:
	case <-q.done:
		return acperrors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-job.result:
		return err
	case <-q.done:
		return acperrors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer goroutine. Messages still queued are dropped.
func (q *WriteQueue) Close() {
	q.once.Do(func() {
		close(q.done)
	})
}
