package transport

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTableResolve(t *testing.T) {
	p := newPendingTable()

	slot, err := p.register(0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.len())

	assert.True(t, p.resolve(0, outcome{result: json.RawMessage(`{"ok":true}`)}))
	out := <-slot
	assert.JSONEq(t, `{"ok":true}`, string(out.result))
	assert.Equal(t, 0, p.len())

	assert.False(t, p.resolve(0, outcome{}), "second response for the same id is dropped")
	assert.False(t, p.resolve(42, outcome{}))
}

func TestPendingTableForget(t *testing.T) {
	p := newPendingTable()
	_, err := p.register(3)
	require.NoError(t, err)

	p.forget(3)
	assert.Equal(t, 0, p.len())
	assert.False(t, p.resolve(3, outcome{}))
}

func TestPendingTableCloseAll(t *testing.T) {
	p := newPendingTable()
	closed := errors.New("closed")

	a, err := p.register(0)
	require.NoError(t, err)
	b, err := p.register(1)
	require.NoError(t, err)

	p.closeAll(closed)
	assert.ErrorIs(t, (<-a).err, closed)
	assert.ErrorIs(t, (<-b).err, closed)

	_, err = p.register(2)
	assert.ErrorIs(t, err, closed)
}
