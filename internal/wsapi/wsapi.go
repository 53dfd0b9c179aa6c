// Package wsapi implements the interactive streaming surface at
// /api/asr/stream-progress. The typed-message dispatch (switch on an
// incoming "action" field) is grounded in the pack's
// therealchrisrock-gitscribe persistent-audio handler and
// askidmobile-AIWisper's API server message-type switch; the
// dedicated send goroutine serializing writes per connection is
// grounded in the same gitscribe file's send-queue pattern, mirrored
// by the teacher's "one goroutine owns the writable resource"
// discipline in its pipeline Worker.
package wsapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/feedback"
	"github.com/voicebridge/asr-server/internal/transcribe"
)

const idleTimeout = 300 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests and runs the per-connection protocol
// against a shared transcription Service and feedback EventBus.
type Handler struct {
	svc    *transcribe.Service
	events *feedback.EventBus
}

func NewHandler(svc *transcribe.Service, events *feedback.EventBus) *Handler {
	return &Handler{svc: svc, events: events}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &conn{
		ws:        ws,
		svc:       h.svc,
		events:    h.events,
		sessionID: uuid.New().String(),
		send:      make(chan []byte, 32),
		done:      make(chan struct{}),
	}
	go c.writeLoop()
	c.readLoop()
}
