package transcribe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/asr-server/internal/enhancer"
	"github.com/voicebridge/asr-server/internal/feedback"
	"github.com/voicebridge/asr-server/internal/jobqueue"
	"github.com/voicebridge/asr-server/internal/pipeline"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/recognizer"
)

func samplePCM(seconds float64) []byte {
	n := int(seconds * 16000)
	return make([]byte, n*2)
}

func newTestService(t *testing.T, events *feedback.EventBus) *Service {
	t.Helper()
	backend := recognizer.NewMock()
	adapter := recognizer.NewAdapter(backend, 1)
	require.Eventually(t, adapter.IsReady, time.Second, time.Millisecond)

	orch := pipeline.NewOrchestrator(adapter, 2, pipeline.MergeSimple)
	return New(orch, enhancer.None{}, postprocess.NewDictionary(), events)
}

func TestServiceRunProducesTranscript(t *testing.T) {
	svc := newTestService(t, nil)
	out, err := svc.Run("sess-1", samplePCM(1), "")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestServiceRunPublishesLifecycleEvents(t *testing.T) {
	eb := feedback.NewEventBus(32)
	defer eb.Stop()

	var seen []feedback.EventType
	eb.SubscribeAll(func(e feedback.Event) { seen = append(seen, e.Type) })

	svc := newTestService(t, eb)
	_, err := svc.Run("sess-2", samplePCM(1), "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, e := range seen {
			if e == feedback.EventComplete {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestServiceRunJobSatisfiesRunner(t *testing.T) {
	svc := newTestService(t, nil)
	runner := JobRunner{Service: svc}

	var progressed bool
	out, err := runner.Run(context.Background(), jobqueue.Input{PCM: samplePCM(1)},
		func(current, total int, message string) { progressed = true },
		func() bool { return false })

	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.True(t, progressed)
}
