package sideeffect

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-os/backend/internal/logging"
)

func TestDispatcher_RunsTasksAndDrainsOnClose(t *testing.T) {
	d := New(logging.Discard(), Options{QueueSize: 16, Workers: 3})

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		ok := d.Submit(context.Background(), "count", func(context.Context) error {
			ran.Add(1)
			return nil
		})
		require.True(t, ok)
	}

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
}

func TestDispatcher_TaskSurvivesCallerCancellation(t *testing.T) {
	d := New(logging.Discard(), Options{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	var ctxErr atomic.Value
	d.Submit(ctx, "late", func(taskCtx context.Context) error {
		ctxErr.Store(taskCtx.Err() == nil)
		return nil
	})
	cancel()

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, true, ctxErr.Load())
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d := New(logging.Discard(), Options{})
	require.NoError(t, d.Close(context.Background()))

	ok := d.Submit(context.Background(), "late", func(context.Context) error { return nil })
	assert.False(t, ok)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	d := New(logging.Discard(), Options{QueueSize: 1, Workers: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	d.Submit(context.Background(), "block", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	assert.True(t, d.Submit(context.Background(), "queued", func(context.Context) error { return nil }))
	assert.False(t, d.Submit(context.Background(), "overflow", func(context.Context) error { return nil }))

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_CloseHonoursDeadline(t *testing.T) {
	d := New(logging.Discard(), Options{Workers: 1})
	release := make(chan struct{})
	defer close(release)
	d.Submit(context.Background(), "slow", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, d.Close(ctx))
}

func TestInline_LogsFailuresAndPanics(t *testing.T) {
	var buf bytes.Buffer
	in := Inline{Logger: logging.New(&buf, "info", "text")}

	assert.True(t, in.Submit(context.Background(), "notify", func(context.Context) error {
		return errors.New("smtp down")
	}))
	assert.True(t, in.Submit(context.Background(), "audit", func(context.Context) error {
		panic("boom")
	}))

	out := buf.String()
	assert.Contains(t, out, "smtp down")
	assert.Contains(t, out, "panic: boom")
}
