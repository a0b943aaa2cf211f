package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
)

type lockedBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestWriteQueueWritesWholeLines(t *testing.T) {
	out := &lockedBuffer{}
	var observed []string
	var mu sync.Mutex
	q := NewWriteQueue(out, 4, func(line []byte) {
		mu.Lock()
		observed = append(observed, string(line))
		mu.Unlock()
	})
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, q.Write(context.Background(), []byte(fmt.Sprintf(`{"n":%d}`, i))))
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, line := range lines {
		assert.Regexp(t, `^\{"n":\d+\}$`, line)
	}
	assert.Equal(t, 20, out.writes)

	mu.Lock()
	assert.Len(t, observed, 20)
	mu.Unlock()
}

func TestWriteQueueReportsWriteErrors(t *testing.T) {
	q := NewWriteQueue(failingWriter{}, 1, nil)
	defer q.Close()

	err := q.Write(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")

	err = q.Write(context.Background(), []byte(`{}`))
	assert.Error(t, err, "later writes are still attempted")
}

func TestWriteQueueAfterClose(t *testing.T) {
	q := NewWriteQueue(&lockedBuffer{}, 1, nil)
	q.Close()
	q.Close()

	err := q.Write(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, acperrors.ErrConnectionClosed)
}

func TestWriteQueueDeadlineWithStalledWriter(t *testing.T) {
	// nobody reads pr, so the first write never completes
	pr, pw := io.Pipe()
	q := NewWriteQueue(pw, 1, nil)
	defer func() {
		_ = pr.Close()
		q.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	began := time.Now()
	err := q.Write(ctx, []byte(`{"n":1}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(began), time.Second)
}
