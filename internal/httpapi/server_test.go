package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/asr-server/internal/enhancer"
	"github.com/voicebridge/asr-server/internal/jobqueue"
	"github.com/voicebridge/asr-server/internal/pipeline"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/ratelimit"
	"github.com/voicebridge/asr-server/internal/recognizer"
	"github.com/voicebridge/asr-server/internal/session"
	"github.com/voicebridge/asr-server/internal/transcribe"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend := recognizer.NewMock()
	adapter := recognizer.NewAdapter(backend, 1)
	require.Eventually(t, adapter.IsReady, time.Second, time.Millisecond)

	orch := pipeline.NewOrchestrator(adapter, 2, pipeline.MergeSimple)
	dict := postprocess.NewDictionary()
	svc := transcribe.New(orch, enhancer.None{}, dict, nil)

	sessions := session.NewManager(svc, session.Config{})
	jobs := jobqueue.New(transcribe.JobRunner{Service: svc}, jobqueue.Config{MaxConcurrentJobs: 1})

	limiter := ratelimit.New(DefaultQuotas(), time.Minute)

	return NewServer(":0", Deps{
		Sessions:   sessions,
		Jobs:       jobs,
		Dictionary: dict,
		Service:    svc,
		Limiter:    limiter,
		Version:    "test",
	})
}

func TestHealthIsUnauthenticatedAndUnlimited(t *testing.T) {
	s := newTestServer(t)
	s.apiKey = "test-key"
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestSessionLifecycleEndToEnd(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/asr/start", bytes.NewBufferString(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var started map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	sessionID := started["session_id"].(string)
	assert.Equal(t, "started", started["status"])

	pcm := make([]byte, 16000*2) // 1 second of silence
	audioRec := httptest.NewRecorder()
	s.Router().ServeHTTP(audioRec, httptest.NewRequest(http.MethodPost, "/api/asr/audio/"+sessionID, bytes.NewReader(pcm)))
	require.Equal(t, http.StatusOK, audioRec.Code)

	stopRec := httptest.NewRecorder()
	s.Router().ServeHTTP(stopRec, httptest.NewRequest(http.MethodPost, "/api/asr/stop/"+sessionID, nil))
	require.Equal(t, http.StatusOK, stopRec.Code)

	var stopped map[string]interface{}
	require.NoError(t, json.Unmarshal(stopRec.Body.Bytes(), &stopped))
	assert.Equal(t, "stopped", stopped["status"])
	assert.NotEmpty(t, stopped["final_transcript"])
}

func TestSessionAudioRejectsOddLength(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/asr/start", bytes.NewBufferString(`{}`)))
	var started map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	sessionID := started["session_id"].(string)

	badRec := httptest.NewRecorder()
	s.Router().ServeHTTP(badRec, httptest.NewRequest(http.MethodPost, "/api/asr/audio/"+sessionID, bytes.NewReader([]byte{1, 2, 3})))
	assert.Equal(t, http.StatusBadRequest, badRec.Code)
}

func TestUnknownSessionStatusReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/asr/status/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthGateRejectsMissingAPIKey(t *testing.T) {
	s := newTestServer(t)
	s.apiKey = "secret"

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/asr/start", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	okRec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/asr/start", bytes.NewBufferString(`{}`))
	req.Header.Set("X-API-Key", "secret")
	s.Router().ServeHTTP(okRec, req)
	assert.Equal(t, http.StatusOK, okRec.Code)
}

func TestRateLimitReturns429AfterQuota(t *testing.T) {
	s := newTestServer(t)
	s.limiter = ratelimit.New(map[ratelimit.Class]int{classSessionOpen: 2}, time.Minute)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/asr/start", bytes.NewBufferString(`{}`)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/asr/start", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestDictionaryCRUD(t *testing.T) {
	s := newTestServer(t)

	putRec := httptest.NewRecorder()
	body := `{"spoken":"api","written":"API","whole_word":true}`
	s.Router().ServeHTTP(putRec, httptest.NewRequest(http.MethodPost, "/api/asr/dictionary", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, putRec.Code)

	listRec := httptest.NewRecorder()
	s.Router().ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/api/asr/dictionary", nil))
	require.Equal(t, http.StatusOK, listRec.Code)

	delRec := httptest.NewRecorder()
	s.Router().ServeHTTP(delRec, httptest.NewRequest(http.MethodDelete, "/api/asr/dictionary/api", nil))
	require.Equal(t, http.StatusOK, delRec.Code)

	missingRec := httptest.NewRecorder()
	s.Router().ServeHTTP(missingRec, httptest.NewRequest(http.MethodDelete, "/api/asr/dictionary/api", nil))
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}
