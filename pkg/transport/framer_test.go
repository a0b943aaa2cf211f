package transport

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReaderSplitsLines(t *testing.T) {
	lr := NewLineReader(strings.NewReader("{\"a\":1}\n\n  \r\n{\"b\":2}\r\n"), 0)

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(line))

	line, err = lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(line))

	_, err = lr.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReaderDiscardsUnterminatedFragment(t *testing.T) {
	lr := NewLineReader(strings.NewReader("{\"a\":1}\n{\"partial\""), 0)

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(line))

	_, err = lr.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReaderLongLines(t *testing.T) {
	long := strings.Repeat("x", 10000)
	lr := NewLineReader(strings.NewReader(long+"\nshort\n"), 0)

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Len(t, line, 10000)

	line, err = lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "short", string(line))
}

func TestLineReaderEnforcesLimit(t *testing.T) {
	long := strings.Repeat("x", 10000)
	lr := NewLineReader(strings.NewReader(long+"\nshort\n"), 100)

	_, err := lr.ReadLine()
	var tooLong *LineTooLongError
	require.True(t, errors.As(err, &tooLong))
	assert.Equal(t, 100, tooLong.Max)
	assert.GreaterOrEqual(t, tooLong.Size, 10000)

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "short", string(line))
}
