package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/voicebridge/asr-server/internal/audio"
	"github.com/voicebridge/asr-server/internal/errs"
	"github.com/voicebridge/asr-server/internal/jobqueue"
)

func (s *Server) handleJobSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "failed to parse multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "missing multipart field \"file\""))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "failed to read uploaded file"))
		return
	}
	pcm, err := audio.Decode(header.Filename, raw)
	if err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "failed to decode uploaded audio"))
		return
	}

	id, err := s.jobs.Submit(jobqueue.Input{
		PCM:      pcm,
		AppHint:  r.FormValue("app_hint"),
		Language: valueOr(r, "language", "auto"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job_id": id, "status": "submitted"})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("job_id")
	job, err := s.jobs.Status(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("job_id")
	if err := s.jobs.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "cancelled"})
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	filter := jobqueue.State(r.URL.Query().Get("status"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.jobs.List(filter, limit)})
}

func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.Stats())
}
