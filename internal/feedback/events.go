// Package feedback fans pipeline and job progress out to whatever
// transport happens to be listening (currently the WebSocket surface),
// decoupling the orchestrator and job queue from that transport. The
// EventBus shape (typed EventType, buffered channel, non-blocking
// publish, per-type and catch-all subscribers) is adapted unchanged from
// the teacher's internal/feedback.EventBus.
package feedback

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType identifies the kind of event, matching the WebSocket
// streaming protocol's server event `type` values.
type EventType string

const (
	EventStarted         EventType = "started"
	EventReady           EventType = "ready"
	EventChunkReceived   EventType = "chunk_received"
	EventProgress        EventType = "progress"
	EventSegmentComplete EventType = "segment_complete"
	EventComplete        EventType = "complete"
	EventError           EventType = "error"
	EventSessionCreated  EventType = "session.created"
	EventSessionEnded    EventType = "session.ended"
	EventJobStateChanged EventType = "job.state.changed"
)

// Event is a single occurrence fanned out to subscribers.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      interface{}
}

// StartedData backs the `started` server event.
type StartedData struct {
	SessionID string
	Timestamp time.Time
}

// ReadyData backs the `ready` server event.
type ReadyData struct {
	SessionID string
	Message   string
}

// ChunkReceivedData backs the `chunk_received` server event.
type ChunkReceivedData struct {
	SessionID   string
	ChunkNumber int
}

// ProgressData backs the `progress` server event.
type ProgressData struct {
	SessionID       string
	CurrentSegment  int
	TotalSegments   int
	ProgressPercent float64
	Message         string
}

// SegmentCompleteData backs the `segment_complete` server event.
type SegmentCompleteData struct {
	SessionID      string
	CurrentSegment int
	TotalSegments  int
	TranscriptPart string
}

// CompleteData backs the `complete` server event.
type CompleteData struct {
	SessionID           string
	FinalTranscript     string
	ProcessedTranscript string
	TotalSegments       int
	Duration            time.Duration
	Strategy            string
	MergeStrategy       string
}

// ErrorData backs the `error` server event.
type ErrorData struct {
	SessionID string
	Message   string
}

// JobStateChangedData backs the internal job.state.changed event, fanned
// out by the job queue on every state transition; nothing in the wire
// protocol exposes it directly today, but it keeps the queue on the same
// observability path as sessions for any future internal consumer.
type JobStateChangedData struct {
	JobID string
	State string
}

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// EventBus manages event distribution.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
	buffer      chan Event
	stopCh      chan struct{}
	wg          sync.WaitGroup
	metrics     *EventMetrics
}

// EventMetrics tracks event statistics.
type EventMetrics struct {
	EventsPublished map[EventType]int64
	EventsDelivered int64
	EventsDropped   int64
	mu              sync.Mutex
}

func NewEventBus(bufferSize int) *EventBus {
	eb := &EventBus{
		handlers: make(map[EventType][]EventHandler),
		buffer:   make(chan Event, bufferSize),
		stopCh:   make(chan struct{}),
		metrics: &EventMetrics{
			EventsPublished: make(map[EventType]int64),
		},
	}

	eb.wg.Add(1)
	go eb.processEvents()

	return eb
}

// Subscribe registers a handler for a specific event type, returning an
// unsubscribe function.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	id := len(eb.handlers[eventType])
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		handlers := eb.handlers[eventType]
		if id < len(handlers) {
			eb.handlers[eventType] = append(handlers[:id], handlers[id+1:]...)
		}
	}
}

// SubscribeAll registers a handler for every event type.
func (eb *EventBus) SubscribeAll(handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allHandlers = append(eb.allHandlers, handler)
	id := len(eb.allHandlers) - 1

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if id < len(eb.allHandlers) {
			eb.allHandlers = append(eb.allHandlers[:id], eb.allHandlers[id+1:]...)
		}
	}
}

// Publish sends an event to all subscribers; the send is non-blocking and
// drops the event if the buffer is full.
func (eb *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.metrics.mu.Lock()
	eb.metrics.EventsPublished[event.Type]++
	eb.metrics.mu.Unlock()

	select {
	case eb.buffer <- event:
	default:
		eb.metrics.mu.Lock()
		eb.metrics.EventsDropped++
		eb.metrics.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"event_type": event.Type,
			"session_id": event.SessionID,
		}).Warn("event dropped, buffer full")
	}
}

func (eb *EventBus) processEvents() {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.buffer:
			eb.deliverEvent(event)
		case <-eb.stopCh:
			for len(eb.buffer) > 0 {
				select {
				case event := <-eb.buffer:
					eb.deliverEvent(event)
				default:
					return
				}
			}
			return
		}
	}
}

func (eb *EventBus) deliverEvent(event Event) {
	eb.mu.RLock()
	handlers := append([]EventHandler{}, eb.handlers[event.Type]...)
	allHandlers := append([]EventHandler{}, eb.allHandlers...)
	eb.mu.RUnlock()

	for _, h := range handlers {
		eb.invoke(h, event)
	}
	for _, h := range allHandlers {
		eb.invoke(h, event)
	}
}

func (eb *EventBus) invoke(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"event_type": event.Type,
				"panic":      r,
			}).Error("event handler panic")
		}
	}()
	h(event)
	eb.metrics.mu.Lock()
	eb.metrics.EventsDelivered++
	eb.metrics.mu.Unlock()
}

// Stop gracefully shuts down the event bus, delivering any buffered
// events first.
func (eb *EventBus) Stop() {
	close(eb.stopCh)
	eb.wg.Wait()
}

// GetMetrics returns a snapshot of the event bus's counters.
func (eb *EventBus) GetMetrics() EventMetrics {
	eb.metrics.mu.Lock()
	defer eb.metrics.mu.Unlock()

	metrics := EventMetrics{
		EventsPublished: make(map[EventType]int64, len(eb.metrics.EventsPublished)),
		EventsDelivered: eb.metrics.EventsDelivered,
		EventsDropped:   eb.metrics.EventsDropped,
	}
	for k, v := range eb.metrics.EventsPublished {
		metrics.EventsPublished[k] = v
	}
	return metrics
}
