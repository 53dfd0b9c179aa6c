package httpapi

import "github.com/voicebridge/asr-server/internal/ratelimit"

// Rate-limit classes, one per §6.1 row that names a distinct quota.
const (
	classHealth       ratelimit.Class = "health"
	classSessionOpen  ratelimit.Class = "session_open"
	classSessionAudio ratelimit.Class = "session_audio"
	classSessionRead  ratelimit.Class = "session_read"
	classOneShot      ratelimit.Class = "one_shot"
	classUpload       ratelimit.Class = "upload"
	classUploadLong   ratelimit.Class = "upload_long"
	classBatch        ratelimit.Class = "batch"
	classText         ratelimit.Class = "text"
	classConfig       ratelimit.Class = "config"
	classJobSubmit    ratelimit.Class = "job_submit"
	classJobRead      ratelimit.Class = "job_read"
	classJobCancel    ratelimit.Class = "job_cancel"
	classDictionary   ratelimit.Class = "dictionary"
	classVersion      ratelimit.Class = "version"
)

// DefaultQuotas returns the §6.1 defaults, ready to pass to ratelimit.New.
func DefaultQuotas() map[ratelimit.Class]int {
	return map[ratelimit.Class]int{
		classSessionOpen:  20,
		classSessionAudio: 300,
		classSessionRead:  60,
		classOneShot:      10,
		classUpload:       10,
		classUploadLong:   5,
		classBatch:        3,
		classText:         30,
		classConfig:       60,
		classJobSubmit:    10,
		classJobRead:      300,
		classJobCancel:    60,
		classDictionary:   60,
		classVersion:      1000,
	}
}

func (s *Server) setupRoutes() {
	r := s.router

	// Health is exempt from auth and rate limiting (§5); version is exempt
	// from auth but still quota-limited per its own §6.1 row.
	r.HandleFunc("GET /health", withLogging(s.handleHealth))
	r.HandleFunc("GET /version", withLogging(s.withQuota(classVersion, s.handleVersion)))

	r.HandleFunc("POST /api/asr/start", withLogging(s.withQuota(classSessionOpen, s.withAuth(s.handleSessionStart))))
	r.HandleFunc("POST /api/asr/audio/{session_id}", withLogging(s.withQuota(classSessionAudio, s.withAuth(s.handleSessionAudio))))
	r.HandleFunc("POST /api/asr/stop/{session_id}", withLogging(s.withQuota(classSessionOpen, s.withAuth(s.handleSessionStop))))
	r.HandleFunc("POST /api/asr/cancel/{session_id}", withLogging(s.withQuota(classSessionOpen, s.withAuth(s.handleSessionCancel))))
	r.HandleFunc("GET /api/asr/status/{session_id}", withLogging(s.withQuota(classSessionRead, s.withAuth(s.handleSessionStatus))))
	r.HandleFunc("GET /api/asr/preview/{session_id}", withLogging(s.withQuota(classSessionRead, s.withAuth(s.handleSessionPreview))))
	r.HandleFunc("POST /api/asr/transcribe", withLogging(s.withQuota(classOneShot, s.withAuth(s.handleTranscribeOneShot))))

	r.HandleFunc("POST /api/postprocess/upload", withLogging(s.withQuota(classUpload, s.withAuth(s.handlePostprocessUpload))))
	r.HandleFunc("POST /api/postprocess/upload-long", withLogging(s.withQuota(classUploadLong, s.withAuth(s.handlePostprocessUploadLong))))
	r.HandleFunc("POST /api/postprocess/batch-transcribe", withLogging(s.withQuota(classBatch, s.withAuth(s.handlePostprocessBatch))))
	r.HandleFunc("POST /api/postprocess/text", withLogging(s.withQuota(classText, s.withAuth(s.handlePostprocessText))))
	r.HandleFunc("GET /api/postprocess/config", withLogging(s.withQuota(classConfig, s.withAuth(s.handlePostprocessConfig))))
	r.HandleFunc("POST /api/postprocess/config", withLogging(s.withQuota(classConfig, s.withAuth(s.handlePostprocessConfig))))

	r.HandleFunc("POST /api/jobs/submit", withLogging(s.withQuota(classJobSubmit, s.withAuth(s.handleJobSubmit))))
	r.HandleFunc("GET /api/jobs/stats", withLogging(s.withQuota(classJobRead, s.withAuth(s.handleJobStats))))
	r.HandleFunc("GET /api/jobs/", withLogging(s.withQuota(classJobRead, s.withAuth(s.handleJobList))))
	r.HandleFunc("POST /api/jobs/{job_id}/cancel", withLogging(s.withQuota(classJobCancel, s.withAuth(s.handleJobCancel))))
	r.HandleFunc("GET /api/jobs/{job_id}", withLogging(s.withQuota(classJobRead, s.withAuth(s.handleJobStatus))))

	r.HandleFunc("GET /api/asr/dictionary", withLogging(s.withQuota(classDictionary, s.withAdminAuth(s.handleDictionaryList))))
	r.HandleFunc("POST /api/asr/dictionary", withLogging(s.withQuota(classDictionary, s.withAdminAuth(s.handleDictionaryList))))
	r.HandleFunc("GET /api/asr/dictionary/{spoken}", withLogging(s.withQuota(classDictionary, s.withAdminAuth(s.handleDictionaryEntry))))
	r.HandleFunc("DELETE /api/asr/dictionary/{spoken}", withLogging(s.withQuota(classDictionary, s.withAdminAuth(s.handleDictionaryEntry))))

	// WebSocket upgrades are exempt from rate limiting (§4.6) but not auth.
	r.HandleFunc("GET /api/asr/stream-progress", s.withAuth(s.wsHandler.ServeHTTP))
}
