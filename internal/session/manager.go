// Package session owns the lifecycle and concurrency-safe mutation of
// Sessions: interactive audio streams accumulated over time, segmented and
// transcribed on stop. The manager shape (map guarded by a single
// sync.RWMutex, per-record mutable state guarded by the record's own
// mutex) is the teacher's internal/session.Manager; the reaper loop is
// grounded in the pack's ticker-driven inactive-session cleanup.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/audio"
	"github.com/voicebridge/asr-server/internal/errs"
)

// State is one node of the session state machine. Transitions are
// monotonic forward except the explicit Cancelled side-exits.
type State string

const (
	StateStarted   State = "Started"
	StateReceiving State = "Receiving"
	StateStopping  State = "Stopping"
	StateStopped   State = "Stopped"
	StateCancelled State = "Cancelled"
	StateExpired   State = "Expired"
)

func (s State) Terminal() bool {
	switch s {
	case StateStopped, StateCancelled, StateExpired:
		return true
	default:
		return false
	}
}

// Session is a server-owned record identified by an opaque 128-bit id.
type Session struct {
	mu sync.Mutex

	ID                string
	State             State
	CreatedAt         time.Time
	LastActivityAt    time.Time
	AppHint           string
	AccumulatedAudio  []audio.Frame
	PendingChunks     int
	PartialTranscript string
	FinalTranscript   string
}

// Snapshot is the read-only view returned by Status.
type Snapshot struct {
	ID                string
	State             State
	CreatedAt         time.Time
	LastActivityAt    time.Time
	AppHint           string
	PendingChunks     int
	PartialTranscript string
	FinalTranscript   string
	DurationSeconds   float64
}

func (s *Session) snapshot() Snapshot {
	var dur float64
	for _, f := range s.AccumulatedAudio {
		dur += f.Duration()
	}
	return Snapshot{
		ID:                s.ID,
		State:             s.State,
		CreatedAt:         s.CreatedAt,
		LastActivityAt:    s.LastActivityAt,
		AppHint:           s.AppHint,
		PendingChunks:     s.PendingChunks,
		PartialTranscript: s.PartialTranscript,
		FinalTranscript:   s.FinalTranscript,
		DurationSeconds:   dur,
	}
}

// Pipeline is the narrow slice of the pipeline orchestrator the session
// package depends on, kept as an interface so session tests never need a
// real recognizer.
type Pipeline interface {
	Run(sessionID string, pcm []byte, appHint string) (transcript string, err error)
}

// Manager is the concurrency-safe owner of all live Sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	pipeline    Pipeline
	sessionTTL  time.Duration
	maxSessions int

	stopReaper chan struct{}
	reaperOnce sync.Once
}

// Config carries the manager's tunables.
type Config struct {
	SessionTTL  time.Duration // default 10 minutes
	MaxSessions int           // 0 means unbounded
}

func NewManager(pipeline Pipeline, cfg Config) *Manager {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		pipeline:    pipeline,
		sessionTTL:  ttl,
		maxSessions: cfg.MaxSessions,
		stopReaper:  make(chan struct{}),
	}
}

// Open allocates a Session in state Started.
func (m *Manager) Open(appHint string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return "", errs.New(errs.ResourceExhausted, "session capacity exhausted")
	}

	id := uuid.New().String()
	now := time.Now()
	m.sessions[id] = &Session{
		ID:             id,
		State:          StateStarted,
		CreatedAt:      now,
		LastActivityAt: now,
		AppHint:        appHint,
	}
	return id, nil
}

func (m *Manager) get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "session %s not found", id)
	}
	return s, nil
}

// Ingest appends pcm bytes to the session's accumulated audio. It never
// blocks on recognition; the returned hint is whatever partial transcript
// the pipeline has opportunistically written so far.
func (m *Manager) Ingest(id string, pcm []byte) (string, error) {
	s, err := m.get(id)
	if err != nil {
		return "", err
	}

	frame, err := audio.NewFrame(pcm)
	if err != nil {
		return "", errs.Wrap(errs.InvalidInput, err, "ingest payload is not a whole number of samples")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateStarted && s.State != StateReceiving {
		return "", errs.New(errs.InvalidState, "session %s is %s, cannot ingest", id, s.State)
	}

	s.State = StateReceiving
	s.AccumulatedAudio = append(s.AccumulatedAudio, frame)
	s.PendingChunks++
	s.LastActivityAt = time.Now()

	return s.PartialTranscript, nil
}

// Stop runs the pipeline over the accumulated audio and transitions the
// session to Stopped. The pipeline runs synchronously; §4.3 documents the
// merge policy applied inside the pipeline itself. If the session is
// cancelled or expired while the pipeline runs, its result is discarded
// and Stop returns InvalidState.
func (m *Manager) Stop(id string) (string, error) {
	s, err := m.get(id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.State.Terminal() {
		s.mu.Unlock()
		return "", errs.New(errs.InvalidState, "session %s is already %s", id, s.State)
	}
	s.State = StateStopping
	pcm := audio.Concat(s.AccumulatedAudio...).Bytes()
	appHint := s.AppHint
	s.mu.Unlock()

	transcript, runErr := m.pipeline.Run(id, pcm, appHint)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == StateCancelled || s.State == StateExpired {
		return "", errs.New(errs.InvalidState, "session %s became %s while stopping", id, s.State)
	}
	if runErr != nil {
		logrus.WithError(runErr).WithField("session_id", id).Error("pipeline run failed on session stop")
		s.State = StateStopped
		s.FinalTranscript = ""
		return "", runErr
	}
	s.FinalTranscript = transcript
	s.PartialTranscript = transcript
	s.State = StateStopped
	s.LastActivityAt = time.Now()
	return transcript, nil
}

// Cancel transitions any non-terminal session to Cancelled and discards
// its audio. No transcript is returned.
func (m *Manager) Cancel(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State.Terminal() {
		return errs.New(errs.InvalidState, "session %s is already %s", id, s.State)
	}
	s.State = StateCancelled
	s.AccumulatedAudio = nil
	s.LastActivityAt = time.Now()
	return nil
}

// Status returns a read-only snapshot of the session.
func (m *Manager) Status(id string) (Snapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// StartReaper launches the background loop that expires sessions idle
// beyond sessionTTL. Grounded in the pack's ticker-driven inactive-session
// sweep; call Close to stop it.
func (m *Manager) StartReaper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweepExpired()
			case <-m.stopReaper:
				return
			}
		}
	}()
}

func (m *Manager) sweepExpired() {
	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()

	now := time.Now()
	for _, s := range candidates {
		s.mu.Lock()
		if !s.State.Terminal() && now.Sub(s.LastActivityAt) > m.sessionTTL {
			s.State = StateExpired
			s.AccumulatedAudio = nil
			logrus.WithField("session_id", s.ID).Info("session expired by reaper")
		}
		s.mu.Unlock()
	}
}

// Close stops the reaper goroutine.
func (m *Manager) Close() {
	m.reaperOnce.Do(func() { close(m.stopReaper) })
}
