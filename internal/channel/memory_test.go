package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySendCapturesFrames(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Send([]byte("one")))
	require.NoError(t, m.Send([]byte("two")))

	require.Len(t, m.Sent, 2)
	assert.Equal(t, "one", string(m.Sent[0]))
	assert.Equal(t, "two", string(m.Sent[1]))
}

func TestMemorySendAfterCloseFails(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())

	err := m.Send([]byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryCloseIsIdempotentAndFiresOnCloseOnce(t *testing.T) {
	m := NewMemory()
	calls := 0
	m.OnClose(func() { calls++ })

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Equal(t, 1, calls)
}

func TestMemoryDeliverInvokesOnMessage(t *testing.T) {
	m := NewMemory()
	var got []byte
	m.OnMessage(func(data []byte) { got = data })

	m.Deliver([]byte("hello"))

	assert.Equal(t, "hello", string(got))
}

func TestMemoryDeliverWithoutHandlerIsNoop(t *testing.T) {
	m := NewMemory()
	assert.NotPanics(t, func() { m.Deliver([]byte("hello")) })
}
