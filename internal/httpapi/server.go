// Package httpapi exposes the REST surface in front of the session
// manager, job queue and dictionary. Routing is grounded in
// ashi009-asr-eval's pkg/workspace/http.go (net/http.ServeMux pattern
// routing, r.PathValue, json.NewEncoder(w).Encode); the
// middleware-chain-over-http.Handler shape is grounded in the pack's
// lookatitude-beluga-ai REST server (pkg/server/providers/rest/server.go);
// the graceful-shutdown-over-signal.NotifyContext pattern is grounded in
// the teacher's cmd/discord-voice-mcp/main.go.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/feedback"
	"github.com/voicebridge/asr-server/internal/jobqueue"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/ratelimit"
	"github.com/voicebridge/asr-server/internal/session"
	"github.com/voicebridge/asr-server/internal/transcribe"
	"github.com/voicebridge/asr-server/internal/wsapi"
)

// Server is the HTTP surface in front of the ASR components. It holds no
// business logic of its own: every handler delegates to a collaborator
// and translates its result/error to the wire shape.
type Server struct {
	router     *http.ServeMux
	httpServer *http.Server

	sessions   *session.Manager
	jobs       *jobqueue.Queue
	dictionary *postprocess.Dictionary
	svc        *transcribe.Service
	limiter    *ratelimit.Limiter
	wsHandler  *wsapi.Handler

	apiKey    string
	adminKey  string
	startTime time.Time
	version   string
}

// Deps bundles the already-constructed collaborators the server wires
// into its routes.
type Deps struct {
	Sessions   *session.Manager
	Jobs       *jobqueue.Queue
	Dictionary *postprocess.Dictionary
	Service    *transcribe.Service
	Events     *feedback.EventBus
	Limiter    *ratelimit.Limiter
	APIKey     string
	AdminKey   string
	Version    string
}

func NewServer(addr string, deps Deps) *Server {
	adminKey := deps.AdminKey
	if adminKey == "" {
		adminKey = deps.APIKey
	}

	s := &Server{
		router:     http.NewServeMux(),
		sessions:   deps.Sessions,
		jobs:       deps.Jobs,
		dictionary: deps.Dictionary,
		svc:        deps.Service,
		limiter:    deps.Limiter,
		wsHandler:  wsapi.NewHandler(deps.Service, deps.Events),
		apiKey:     deps.APIKey,
		adminKey:   adminKey,
		startTime:  time.Now(),
		version:    deps.Version,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.httpServer.Addr).Info("http server listening")
		serverErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logrus.Info("http server shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Router exposes the underlying mux for tests.
func (s *Server) Router() *http.ServeMux { return s.router }
