package pump

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleResolvesExactlyOnce(t *testing.T) {
	h := newHandle()
	require.False(t, h.Resolved())

	h.fulfill("first", nil)
	h.fulfill("second", errors.New("late"))

	value, err := h.Result()
	require.NoError(t, err)
	require.Equal(t, "first", value)
	require.True(t, h.Resolved())
}

func TestHandleForwardsFailure(t *testing.T) {
	errSend := errors.New("send failed")
	h := newHandle()
	h.fulfill(nil, errSend)

	_, err := h.Result()
	require.ErrorIs(t, err, errSend)
	require.False(t, h.Canceled())
}

func TestHandleCancellationIsDistinct(t *testing.T) {
	h := newHandle()
	require.False(t, h.Canceled(), "unresolved handle is not cancelled")

	h.fulfill(nil, context.Canceled)
	_, err := h.Result()
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, h.Canceled())
}

func TestHandleConcurrentResolution(t *testing.T) {
	h := newHandle()
	for i := 0; i < 8; i++ {
		go h.fulfill(i, nil)
	}
	value, err := h.Result()
	require.NoError(t, err)
	require.IsType(t, 0, value)
}
