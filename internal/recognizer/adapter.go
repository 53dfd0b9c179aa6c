package recognizer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voicebridge/asr-server/internal/errs"
)

const retryBackoff = 250 * time.Millisecond

// Adapter fronts a concrete Recognizer backend with lazy background
// warm-up, call serialization for non-reentrant backends, and a single
// retry-with-backoff on inference failure. Callers (the pipeline
// orchestrator) always go through an Adapter, never a bare backend.
type Adapter struct {
	backend Recognizer

	initOnce sync.Once
	initErr  error
	initDone chan struct{}

	mu  sync.Mutex    // held for the duration of a call when backend is not reentrant
	sem chan struct{} // width-limited concurrency when backend is reentrant
}

// NewAdapter starts warm-up in the background immediately; callers that
// need inference before warm-up completes block in Transcribe until it
// finishes rather than paying the cost serially in the request path.
func NewAdapter(backend Recognizer, workers int) *Adapter {
	a := &Adapter{
		backend:  backend,
		initDone: make(chan struct{}),
	}
	if backend.Reentrant() && workers > 1 {
		a.sem = make(chan struct{}, workers)
	}

	go func() {
		a.initOnce.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			a.initErr = backend.Warmup(ctx)
			if a.initErr != nil {
				logrus.WithError(a.initErr).Error("recognizer warmup failed")
			} else {
				logrus.Info("recognizer warmed up")
			}
			close(a.initDone)
		})
	}()

	return a
}

// IsReady reports whether warm-up has completed successfully.
func (a *Adapter) IsReady() bool {
	select {
	case <-a.initDone:
		return a.initErr == nil && a.backend.IsReady()
	default:
		return false
	}
}

// Transcribe waits for warm-up, serializes the call if the backend is not
// reentrant, and retries once with a 250ms backoff on failure.
func (a *Adapter) Transcribe(ctx context.Context, pcm []byte, opts Options) (Result, error) {
	select {
	case <-a.initDone:
		if a.initErr != nil {
			return Result{}, errs.Wrap(errs.Internal, a.initErr, "recognizer failed to initialize")
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	release, err := a.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	result, err := a.backend.Transcribe(ctx, pcm, opts)
	if err == nil {
		return result, nil
	}

	logrus.WithError(err).Warn("recognizer inference failed, retrying once")
	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	result, err = a.backend.Transcribe(ctx, pcm, opts)
	if err != nil {
		return Result{}, errs.Wrap(errs.RecognizerFailed, err, "recognizer inference failed after retry")
	}
	return result, nil
}

// acquire enforces the concurrency policy: exclusive lock for non-reentrant
// backends, a bounded semaphore (or unlimited) for reentrant ones.
func (a *Adapter) acquire(ctx context.Context) (func(), error) {
	if !a.backend.Reentrant() {
		a.mu.Lock()
		return a.mu.Unlock, nil
	}
	if a.sem == nil {
		return func() {}, nil
	}
	select {
	case a.sem <- struct{}{}:
		return func() { <-a.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Adapter) Close() error { return a.backend.Close() }
