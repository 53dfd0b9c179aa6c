package wsapi

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/audio"
	"github.com/voicebridge/asr-server/internal/feedback"
	"github.com/voicebridge/asr-server/internal/pipeline"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/segmenter"
	"github.com/voicebridge/asr-server/internal/transcribe"
)

// clientMessage is the JSON text-frame shape for every client->server
// action named in the streaming protocol.
type clientMessage struct {
	Action           string `json:"action"`
	Strategy         string `json:"strategy"`
	MergeStrategy    string `json:"merge_strategy"`
	ApplyPostprocess *bool  `json:"apply_postprocess"`
}

// conn owns one upgraded connection: a read goroutine (this session's
// caller) and a send goroutine, so writes are never interleaved.
type conn struct {
	ws        *websocket.Conn
	svc       *transcribe.Service
	events    *feedback.EventBus
	sessionID string

	send chan []byte
	done chan struct{}

	mu         sync.Mutex
	pcm        []byte
	chunkCount int
	cancelled  int32
	processing bool

	unsubscribe func()
}

func (c *conn) readLoop() {
	defer c.close()

	c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(idleTimeout))

		switch msgType {
		case websocket.BinaryMessage:
			c.handleChunk(data)
		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				c.emit(map[string]interface{}{"type": "error", "session_id": c.sessionID, "message": "invalid JSON action"})
				continue
			}
			c.handleAction(msg)
		}
	}
}

func (c *conn) handleChunk(data []byte) {
	if len(data)%audio.BytesPerSample != 0 {
		c.emit(map[string]interface{}{"type": "error", "session_id": c.sessionID, "message": "pcm chunk length must be a multiple of 2 bytes"})
		return
	}

	c.mu.Lock()
	c.pcm = append(c.pcm, data...)
	c.chunkCount++
	n := c.chunkCount
	c.mu.Unlock()

	c.emit(map[string]interface{}{"type": "chunk_received", "session_id": c.sessionID, "chunk_number": n})
}

func (c *conn) handleAction(msg clientMessage) {
	switch msg.Action {
	case "start":
		c.start()
	case "process":
		c.process(msg)
	case "stop":
		atomic.StoreInt32(&c.cancelled, 1)
		c.close()
	default:
		c.emit(map[string]interface{}{"type": "error", "session_id": c.sessionID, "message": "unknown action"})
	}
}

func (c *conn) start() {
	c.unsubscribe = c.events.SubscribeAll(func(e feedback.Event) {
		if e.SessionID != c.sessionID {
			return
		}
		// started/ready are emitted directly below and again, unwanted,
		// by the service's own transcribeCancellable; only forward the
		// events this connection doesn't already own.
		switch e.Type {
		case feedback.EventProgress, feedback.EventSegmentComplete, feedback.EventComplete, feedback.EventError:
			if wire, ok := toWireEvent(e); ok {
				c.emit(wire)
			}
		}
	})

	c.emit(map[string]interface{}{"type": "started", "session_id": c.sessionID, "timestamp": time.Now()})
	c.emit(map[string]interface{}{"type": "ready", "session_id": c.sessionID, "message": "awaiting audio"})
}

func (c *conn) process(msg clientMessage) {
	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return
	}
	c.processing = true
	pcm := make([]byte, len(c.pcm))
	copy(pcm, c.pcm)
	c.mu.Unlock()

	strategy := msg.Strategy
	if strategy == "" {
		strategy = segmenter.StrategyHybrid
	}
	mergeStrategy := msg.MergeStrategy
	if mergeStrategy == "" {
		mergeStrategy = pipeline.MergeSimple
	}
	mode := postprocess.ModeStandard
	if msg.ApplyPostprocess != nil && !*msg.ApplyPostprocess {
		mode = postprocess.ModeNone
	}

	opts := transcribe.Options{
		SegmenterConfig: c.svc.SegmenterConfigFor(strategy),
		MergeStrategy:   mergeStrategy,
		PostprocessMode: mode,
		Language:        "auto",
		SessionID:       c.sessionID,
	}

	go func() {
		defer func() {
			c.mu.Lock()
			c.processing = false
			c.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Second)
		defer cancel()

		_, err := c.svc.RunWithOptionsCancellable(ctx, pcm, opts, func() bool {
			return atomic.LoadInt32(&c.cancelled) == 1
		})
		if err != nil {
			logrus.WithError(err).WithField("session_id", c.sessionID).Warn("streaming transcription failed")
			c.emit(map[string]interface{}{"type": "error", "session_id": c.sessionID, "message": err.Error()})
		}
	}()
}

func (c *conn) emit(wire map[string]interface{}) {
	b, err := json.Marshal(wire)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	case <-c.done:
	default:
		logrus.WithField("session_id", c.sessionID).Warn("websocket send buffer full, dropping event")
	}
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) close() {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.ws.Close()
}

func toWireEvent(e feedback.Event) (map[string]interface{}, bool) {
	switch d := e.Data.(type) {
	case feedback.ProgressData:
		return map[string]interface{}{
			"type": "progress", "session_id": d.SessionID,
			"current_segment": d.CurrentSegment, "total_segments": d.TotalSegments,
			"progress_percent": d.ProgressPercent, "message": d.Message,
		}, true
	case feedback.SegmentCompleteData:
		return map[string]interface{}{
			"type": "segment_complete", "session_id": d.SessionID,
			"current_segment": d.CurrentSegment, "total_segments": d.TotalSegments,
			"transcript_part": d.TranscriptPart,
		}, true
	case feedback.CompleteData:
		return map[string]interface{}{
			"type": "complete", "session_id": d.SessionID,
			"final_transcript": d.FinalTranscript, "processed_transcript": d.ProcessedTranscript,
			"total_segments": d.TotalSegments, "duration": d.Duration.Seconds(),
			"strategy": d.Strategy, "merge_strategy": d.MergeStrategy,
		}, true
	case feedback.ErrorData:
		return map[string]interface{}{"type": "error", "session_id": d.SessionID, "message": d.Message}, true
	default:
		return nil, false
	}
}
