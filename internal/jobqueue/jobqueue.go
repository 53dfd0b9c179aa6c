// Package jobqueue schedules bounded-concurrency, long-running
// transcription jobs. The channel-plus-fixed-worker-pool shape and the
// atomics-based stats struct are adapted from the teacher's
// internal/pipeline.TranscriptionQueue/Worker/QueueMetrics, collapsing
// the teacher's three priority channels into a single FIFO channel since
// the Job Queue has no priority concept.
package jobqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/errs"
	"github.com/voicebridge/asr-server/internal/feedback"
)

type State string

const (
	StatePending    State = "Pending"
	StateProcessing State = "Processing"
	StateCompleted  State = "Completed"
	StateFailed     State = "Failed"
	StateCancelled  State = "Cancelled"
)

func (s State) terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Input is whatever the caller needs the runner to process; it is opaque
// to the queue itself.
type Input struct {
	PCM      []byte
	AppHint  string
	Language string
}

// JobError mirrors the §7 error taxonomy for a job's terminal failure.
type JobError struct {
	Kind    errs.Kind
	Message string
}

// Job is a queued asynchronous processing record.
type Job struct {
	mu sync.Mutex

	ID              string
	State           State
	Progress        float64
	ProgressMessage string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Result          string
	Error           *JobError
	Input           Input

	cancelRequested atomic.Bool
}

// JobSnapshot is the read-only view returned by Status and List; Job itself
// is never copied by value because it embeds a mutex and an atomic flag.
type JobSnapshot struct {
	ID              string
	State           State
	Progress        float64
	ProgressMessage string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Result          string
	Error           *JobError
	Input           Input
}

func (j *Job) snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:              j.ID,
		State:           j.State,
		Progress:        j.Progress,
		ProgressMessage: j.ProgressMessage,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		Result:          j.Result,
		Error:           j.Error,
		Input:           j.Input,
	}
}

// Runner executes one job's pipeline. progress reports (current, total,
// message) and must be called from within Run; cancelled reports whether
// the job's cancel flag has been set, to be polled at segment boundaries.
type Runner interface {
	Run(ctx context.Context, input Input, progress func(current, total int, message string), cancelled func() bool) (result string, err error)
}

// Config carries the queue's tunables.
type Config struct {
	MaxConcurrentJobs int           // default 3
	QueueCapacity     int           // buffered channel size, default 256
	JobTTL            time.Duration // default 24h
}

// Queue is the bounded-concurrency FIFO job scheduler.
type Queue struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	pending chan *Job
	runner  Runner
	jobTTL  time.Duration
	events  *feedback.EventBus

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	stats Stats
}

// Stats mirrors the teacher's atomics-based QueueMetrics, extended with
// job-state counts for the stats endpoint.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Cancelled int64
}

func New(runner Runner, cfg Config) *Queue {
	workers := cfg.MaxConcurrentJobs
	if workers <= 0 {
		workers = 3
	}
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 256
	}
	ttl := cfg.JobTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	q := &Queue{
		jobs:    make(map[string]*Job),
		pending: make(chan *Job, capacity),
		runner:  runner,
		jobTTL:  ttl,
		stopCh:  make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.runWorker(i)
	}

	return q
}

// WithEvents attaches an EventBus the queue publishes job.state.changed
// events to; nil (the default) disables publishing entirely.
func (q *Queue) WithEvents(events *feedback.EventBus) *Queue {
	q.events = events
	return q
}

func (q *Queue) publishState(jobID string, state State) {
	if q.events == nil {
		return
	}
	q.events.Publish(feedback.Event{
		Type: feedback.EventJobStateChanged,
		Data: feedback.JobStateChangedData{JobID: jobID, State: string(state)},
	})
}

// Submit enqueues input and returns the new job's id immediately.
func (q *Queue) Submit(input Input) (string, error) {
	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		CreatedAt: time.Now(),
		Input:     input,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()
	atomic.AddInt64(&q.stats.Submitted, 1)

	select {
	case q.pending <- job:
		q.publishState(job.ID, StatePending)
		return job.ID, nil
	default:
		job.mu.Lock()
		job.State = StateFailed
		job.Error = &JobError{Kind: errs.ResourceExhausted, Message: "job queue is full"}
		job.mu.Unlock()
		q.publishState(job.ID, StateFailed)
		return "", errs.New(errs.ResourceExhausted, "job queue is full")
	}
}

func (q *Queue) get(id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "job %s not found", id)
	}
	return j, nil
}

// Status returns a read-only snapshot of the job.
func (q *Queue) Status(id string) (JobSnapshot, error) {
	j, err := q.get(id)
	if err != nil {
		return JobSnapshot{}, err
	}
	return j.snapshot(), nil
}

// Cancel moves a Pending job directly to Cancelled, or sets the cancel
// flag on a Processing job for the orchestrator to observe at the next
// segment boundary.
func (q *Queue) Cancel(id string) error {
	j, err := q.get(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.State {
	case StatePending:
		j.State = StateCancelled
		now := time.Now()
		j.CompletedAt = &now
		atomic.AddInt64(&q.stats.Cancelled, 1)
		q.publishState(id, StateCancelled)
		return nil
	case StateProcessing:
		j.cancelRequested.Store(true)
		return nil
	default:
		return errs.New(errs.InvalidState, "job %s is already %s", id, j.State)
	}
}

// List returns snapshots of jobs matching filter (empty matches all),
// most recently created first, capped at limit (0 means unbounded).
func (q *Queue) List(filter State, limit int) []JobSnapshot {
	q.mu.RLock()
	all := make([]*Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		all = append(all, j)
	}
	q.mu.RUnlock()

	var out []JobSnapshot
	for _, j := range all {
		snap := j.snapshot()
		if filter != "" && snap.State != filter {
			continue
		}
		out = append(out, snap)
	}
	for i := 0; i < len(out); i++ {
		for k := i + 1; k < len(out); k++ {
			if out[k].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[k] = out[k], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats returns the current atomic counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: atomic.LoadInt64(&q.stats.Submitted),
		Completed: atomic.LoadInt64(&q.stats.Completed),
		Failed:    atomic.LoadInt64(&q.stats.Failed),
		Cancelled: atomic.LoadInt64(&q.stats.Cancelled),
	}
}

func (q *Queue) runWorker(id int) {
	defer q.wg.Done()
	log := logrus.WithField("jobqueue_worker", id)

	for {
		select {
		case <-q.stopCh:
			return
		case job, ok := <-q.pending:
			if !ok {
				return
			}
			q.process(job, log)
		}
	}
}

func (q *Queue) process(job *Job, log *logrus.Entry) {
	job.mu.Lock()
	if job.State != StatePending {
		job.mu.Unlock()
		return
	}
	job.State = StateProcessing
	now := time.Now()
	job.StartedAt = &now
	input := job.Input
	job.mu.Unlock()
	q.publishState(job.ID, StateProcessing)

	progress := func(current, total int, message string) {
		job.mu.Lock()
		defer job.mu.Unlock()
		if total > 0 {
			p := float64(current) / float64(total)
			if p > job.Progress {
				job.Progress = p
			}
		}
		job.ProgressMessage = message
	}
	cancelled := func() bool { return job.cancelRequested.Load() }

	result, err := q.runner.Run(context.Background(), input, progress, cancelled)

	job.mu.Lock()
	defer job.mu.Unlock()
	completed := time.Now()
	job.CompletedAt = &completed

	switch {
	case cancelled() && job.State == StateProcessing:
		job.State = StateCancelled
		atomic.AddInt64(&q.stats.Cancelled, 1)
	case err != nil:
		job.State = StateFailed
		job.Error = &JobError{Kind: errs.KindOf(err), Message: err.Error()}
		atomic.AddInt64(&q.stats.Failed, 1)
		log.WithError(err).WithField("job_id", job.ID).Error("job failed")
	default:
		job.State = StateCompleted
		job.Result = result
		job.Progress = 1.0
		atomic.AddInt64(&q.stats.Completed, 1)
	}
	q.publishState(job.ID, job.State)
}

// StartReaper launches the background loop that deletes jobs whose
// completed_at+job_ttl has passed, grounded in the same ticker pattern as
// the session manager's reaper.
func (q *Queue) StartReaper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.sweepExpired()
			case <-q.stopCh:
				return
			}
		}
	}()
}

func (q *Queue) sweepExpired() {
	now := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, j := range q.jobs {
		j.mu.Lock()
		expired := j.State.terminal() && j.CompletedAt != nil && now.Sub(*j.CompletedAt) > q.jobTTL
		j.mu.Unlock()
		if expired {
			delete(q.jobs, id)
		}
	}
}

// Close stops accepting new work and waits for in-flight jobs to drain.
func (q *Queue) Close() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}
