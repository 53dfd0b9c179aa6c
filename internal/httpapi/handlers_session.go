package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/voicebridge/asr-server/internal/audio"
	"github.com/voicebridge/asr-server/internal/errs"
)

type startSessionRequest struct {
	AppHint string `json:"app_hint"`
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	id, err := s.sessions.Open(req.AppHint)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "status": "started"})
}

func (s *Server) handleSessionAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")

	pcm, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "failed to read audio body"))
		return
	}
	if len(pcm)%audio.BytesPerSample != 0 {
		writeError(w, errs.New(errs.InvalidInput, "audio payload length %d is not a multiple of %d", len(pcm), audio.BytesPerSample))
		return
	}

	partial, err := s.sessions.Ingest(id, pcm)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"partial_transcript": partial, "is_final": false})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")

	transcript, err := s.sessions.Stop(id)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, _ := s.sessions.Status(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":       id,
		"status":           "stopped",
		"final_transcript": transcript,
		"total_chunks":     snap.PendingChunks,
	})
}

func (s *Server) handleSessionCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	if err := s.sessions.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "cancelled"})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	snap, err := s.sessions.Status(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSessionPreview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	snap, err := s.sessions.Status(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":         id,
		"partial_transcript": snap.PartialTranscript,
	})
}

func (s *Server) handleTranscribeOneShot(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "failed to read request body"))
		return
	}

	pcm := raw
	if audio.IsWAV(raw) {
		pcm, err = audio.DecodeWAV(raw)
		if err != nil {
			writeError(w, errs.Wrap(errs.InvalidInput, err, "invalid WAV container"))
			return
		}
	} else if len(raw)%audio.BytesPerSample != 0 {
		writeError(w, errs.New(errs.InvalidInput, "audio payload length %d is not a multiple of %d", len(raw), audio.BytesPerSample))
		return
	}

	transcript, err := s.svc.Run("", pcm, r.URL.Query().Get("app_hint"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transcript": transcript})
}
