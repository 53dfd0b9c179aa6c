package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/asr-server/internal/errs"
)

type fakePipeline struct {
	transcript string
	err        error
}

func (f *fakePipeline) Run(sessionID string, pcm []byte, appHint string) (string, error) {
	return f.transcript, f.err
}

func newTestManager(p Pipeline) *Manager {
	if p == nil {
		p = &fakePipeline{transcript: "hello world"}
	}
	return NewManager(p, Config{SessionTTL: time.Hour})
}

func samplePCM(n int) []byte { return make([]byte, n*2) }

func TestOpenCreatesStartedSession(t *testing.T) {
	m := newTestManager(nil)
	id, err := m.Open("")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StateStarted, snap.State)
}

func TestOpenRespectsCapacity(t *testing.T) {
	m := NewManager(&fakePipeline{}, Config{SessionTTL: time.Hour, MaxSessions: 1})
	_, err := m.Open("")
	require.NoError(t, err)
	_, err = m.Open("")
	require.Error(t, err)
	assert.Equal(t, errs.ResourceExhausted, errs.KindOf(err))
}

func TestIngestTransitionsToReceiving(t *testing.T) {
	m := newTestManager(nil)
	id, _ := m.Open("")

	hint, err := m.Ingest(id, samplePCM(160))
	require.NoError(t, err)
	assert.Empty(t, hint)

	snap, _ := m.Status(id)
	assert.Equal(t, StateReceiving, snap.State)
	assert.Equal(t, 1, snap.PendingChunks)
}

func TestIngestRejectsOddByteCount(t *testing.T) {
	m := newTestManager(nil)
	id, _ := m.Open("")
	_, err := m.Ingest(id, []byte{0x01})
	require.Error(t, err)
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func TestIngestUnknownSessionIsNotFound(t *testing.T) {
	m := newTestManager(nil)
	_, err := m.Ingest("does-not-exist", samplePCM(10))
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestIngestAfterStopIsInvalidState(t *testing.T) {
	m := newTestManager(nil)
	id, _ := m.Open("")
	_, _ = m.Ingest(id, samplePCM(160))
	_, err := m.Stop(id)
	require.NoError(t, err)

	_, err = m.Ingest(id, samplePCM(160))
	require.Error(t, err)
	assert.Equal(t, errs.InvalidState, errs.KindOf(err))
}

func TestStopReturnsPipelineTranscript(t *testing.T) {
	m := newTestManager(&fakePipeline{transcript: "final text"})
	id, _ := m.Open("")
	_, _ = m.Ingest(id, samplePCM(1600))

	transcript, err := m.Stop(id)
	require.NoError(t, err)
	assert.Equal(t, "final text", transcript)

	snap, _ := m.Status(id)
	assert.Equal(t, StateStopped, snap.State)
}

func TestStopOnTerminalSessionIsInvalidState(t *testing.T) {
	m := newTestManager(nil)
	id, _ := m.Open("")
	_, err := m.Stop(id)
	require.NoError(t, err)

	_, err = m.Stop(id)
	require.Error(t, err)
	assert.Equal(t, errs.InvalidState, errs.KindOf(err))
}

func TestStopPropagatesPipelineError(t *testing.T) {
	m := newTestManager(&fakePipeline{err: errors.New("boom")})
	id, _ := m.Open("")

	_, err := m.Stop(id)
	require.Error(t, err)

	snap, _ := m.Status(id)
	assert.Equal(t, StateStopped, snap.State)
}

func TestCancelDiscardsAudio(t *testing.T) {
	m := newTestManager(nil)
	id, _ := m.Open("")
	_, _ = m.Ingest(id, samplePCM(160))

	require.NoError(t, m.Cancel(id))

	snap, err := m.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, snap.State)
	assert.Zero(t, snap.DurationSeconds)
}

func TestCancelOnTerminalSessionFails(t *testing.T) {
	m := newTestManager(nil)
	id, _ := m.Open("")
	require.NoError(t, m.Cancel(id))
	require.Error(t, m.Cancel(id))
}

func TestReaperExpiresIdleSessions(t *testing.T) {
	m := NewManager(&fakePipeline{}, Config{SessionTTL: 10 * time.Millisecond})
	id, _ := m.Open("")

	m.StartReaper(5 * time.Millisecond)
	defer m.Close()

	require.Eventually(t, func() bool {
		snap, err := m.Status(id)
		return err == nil && snap.State == StateExpired
	}, time.Second, 5*time.Millisecond)
}
