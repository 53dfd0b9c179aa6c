package recognizer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBackend struct {
	reentrant bool
	calls     int32
	failFirst bool
	failed    int32
}

func (c *countingBackend) Warmup(ctx context.Context) error { return nil }
func (c *countingBackend) IsReady() bool                    { return true }
func (c *countingBackend) Reentrant() bool                  { return c.reentrant }
func (c *countingBackend) Close() error                     { return nil }

func (c *countingBackend) Transcribe(ctx context.Context, pcm []byte, opts Options) (Result, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.failFirst && atomic.AddInt32(&c.failed, 1) == 1 {
		return Result{}, errors.New("boom")
	}
	return Result{Text: "ok"}, nil
}

func waitReady(t *testing.T, a *Adapter) {
	t.Helper()
	require.Eventually(t, a.IsReady, time.Second, time.Millisecond)
}

func TestAdapterWaitsForWarmupBeforeServing(t *testing.T) {
	backend := &countingBackend{reentrant: true}
	a := NewAdapter(backend, 4)
	waitReady(t, a)

	res, err := a.Transcribe(context.Background(), []byte{0, 0}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
}

func TestAdapterRetriesOnceOnFailure(t *testing.T) {
	backend := &countingBackend{reentrant: true, failFirst: true}
	a := NewAdapter(backend, 1)
	waitReady(t, a)

	res, err := a.Transcribe(context.Background(), []byte{0, 0}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&backend.calls))
}

func TestAdapterPropagatesSecondFailure(t *testing.T) {
	backend := &failAlwaysBackend{}
	a := NewAdapter(backend, 1)
	waitReady(t, a)

	_, err := a.Transcribe(context.Background(), []byte{0, 0}, Options{})
	require.Error(t, err)
}

type failAlwaysBackend struct{}

func (f *failAlwaysBackend) Warmup(ctx context.Context) error { return nil }
func (f *failAlwaysBackend) IsReady() bool                    { return true }
func (f *failAlwaysBackend) Reentrant() bool                  { return true }
func (f *failAlwaysBackend) Close() error                     { return nil }
func (f *failAlwaysBackend) Transcribe(ctx context.Context, pcm []byte, opts Options) (Result, error) {
	return Result{}, errors.New("always fails")
}

func TestAdapterSerializesNonReentrantBackend(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	a := NewAdapter(backend, 1)
	waitReady(t, a)

	firstStarted := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_, _ = a.Transcribe(context.Background(), nil, Options{})
		close(done)
	}()

	go func() {
		require.Eventually(t, func() bool { return atomic.LoadInt32(&backend.inFlight) == 1 }, time.Second, time.Millisecond)
		close(firstStarted)
	}()
	<-firstStarted

	secondDone := make(chan struct{})
	go func() {
		_, _ = a.Transcribe(context.Background(), nil, Options{})
		close(secondDone)
	}()

	select {
	case <-secondDone:
		t.Fatal("second call should not complete while first holds the lock")
	case <-time.After(50 * time.Millisecond):
	}

	assert.EqualValues(t, 1, atomic.LoadInt32(&backend.inFlight))
	close(backend.release)
	<-done
	<-secondDone
}

type blockingBackend struct {
	release  chan struct{}
	inFlight int32
}

func (b *blockingBackend) Warmup(ctx context.Context) error { return nil }
func (b *blockingBackend) IsReady() bool                    { return true }
func (b *blockingBackend) Reentrant() bool                  { return false }
func (b *blockingBackend) Close() error                     { return nil }
func (b *blockingBackend) Transcribe(ctx context.Context, pcm []byte, opts Options) (Result, error) {
	atomic.AddInt32(&b.inFlight, 1)
	<-b.release
	atomic.AddInt32(&b.inFlight, -1)
	return Result{}, nil
}
