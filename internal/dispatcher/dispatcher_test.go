package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/event"
)

func testEvent(t event.Type) *event.Event {
	return event.NewEvent(t, "exp-1", "proj-1", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := New(zap.NewNop())

	var order []string
	d.SubscribeNamed(event.TypeExpenseCreated, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeExpenseCreated, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	err := d.Dispatch(context.Background(), testEvent(event.TypeExpenseCreated))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatch_StopsOnFirstError(t *testing.T) {
	d := New(zap.NewNop())

	sentinel := errors.New("boom")
	var secondRan bool
	d.SubscribeNamed(event.TypeExpenseCreated, "failing", func(ctx context.Context, evt *event.Event) error {
		return sentinel
	})
	d.SubscribeNamed(event.TypeExpenseCreated, "after", func(ctx context.Context, evt *event.Event) error {
		secondRan = true
		return nil
	})

	err := d.Dispatch(context.Background(), testEvent(event.TypeExpenseCreated))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, secondRan)
}

func TestDispatchAsync_FailureIsContained(t *testing.T) {
	d := New(zap.NewNop())

	var ran atomic.Int32
	d.SubscribeNamed(event.TypeExpenseCreated, "failing", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		return errors.New("background failure")
	})
	d.SubscribeNamed(event.TypeExpenseCreated, "panicking", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		panic("background panic")
	})

	// Neither the error nor the panic reaches the dispatching call
	d.DispatchAsync(context.Background(), testEvent(event.TypeExpenseCreated))

	require.NoError(t, d.Close())
	assert.Equal(t, int32(2), ran.Load())
}

func TestDispatchAsync_HandlersComplete(t *testing.T) {
	d := New(zap.NewNop())

	done := make(chan struct{})
	d.Subscribe(event.TypeReceiptProcessed, func(ctx context.Context, evt *event.Event) error {
		time.Sleep(10 * time.Millisecond)
		close(done)
		return nil
	})

	d.DispatchAsync(context.Background(), testEvent(event.TypeReceiptProcessed))
	require.NoError(t, d.Close())

	select {
	case <-done:
	default:
		t.Fatal("Close returned before async handler finished")
	}
}

func TestDispatch_AfterCloseFails(t *testing.T) {
	d := New(zap.NewNop())
	require.NoError(t, d.Close())

	err := d.Dispatch(context.Background(), testEvent(event.TypeExpenseCreated))
	require.Error(t, err)
	assert.Error(t, d.Close(), "double close should error")
}

func TestDispatch_NoHandlersIsNoop(t *testing.T) {
	d := New(zap.NewNop())
	require.NoError(t, d.Dispatch(context.Background(), testEvent(event.TypeStatusChanged)))
}
