package wsapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/asr-server/internal/enhancer"
	"github.com/voicebridge/asr-server/internal/feedback"
	"github.com/voicebridge/asr-server/internal/pipeline"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/recognizer"
	"github.com/voicebridge/asr-server/internal/transcribe"
)

func newTestHandler(t *testing.T) (*Handler, *feedback.EventBus) {
	t.Helper()
	backend := recognizer.NewMock()
	adapter := recognizer.NewAdapter(backend, 1)
	require.Eventually(t, adapter.IsReady, time.Second, time.Millisecond)

	orch := pipeline.NewOrchestrator(adapter, 2, pipeline.MergeSimple)
	events := feedback.NewEventBus(64)
	svc := transcribe.New(orch, enhancer.None{}, postprocess.NewDictionary(), events)
	return NewHandler(svc, events), events
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestStreamLifecycleEmitsStartedReadyAndComplete(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "start"}))

	var started, ready map[string]interface{}
	require.NoError(t, conn.ReadJSON(&started))
	require.Equal(t, "started", started["type"])
	require.NoError(t, conn.ReadJSON(&ready))
	require.Equal(t, "ready", ready["type"])

	pcm := make([]byte, 16000*2) // 1 second of silence
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pcm))

	var chunkReceived map[string]interface{}
	require.NoError(t, conn.ReadJSON(&chunkReceived))
	require.Equal(t, "chunk_received", chunkReceived["type"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"action": "process"}))

	var complete map[string]interface{}
	for i := 0; i < 10; i++ {
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == "complete" {
			complete = msg
			break
		}
	}
	require.NotNil(t, complete, "expected a complete event")
	require.NotEmpty(t, complete["final_transcript"])
}

func TestUnknownActionEmitsError(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "bogus"}))

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "error", msg["type"])
}
