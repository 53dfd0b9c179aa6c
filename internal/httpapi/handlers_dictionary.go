package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/voicebridge/asr-server/internal/errs"
	"github.com/voicebridge/asr-server/internal/postprocess"
)

func (s *Server) handleDictionaryList(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": s.dictionary.List()})
		return
	}

	var entry postprocess.DictionaryEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "invalid JSON body"))
		return
	}
	if entry.Spoken == "" || entry.Written == "" {
		writeError(w, errs.New(errs.InvalidInput, "spoken and written are required"))
		return
	}
	s.dictionary.Put(entry)
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDictionaryEntry(w http.ResponseWriter, r *http.Request) {
	spoken := r.PathValue("spoken")

	switch r.Method {
	case http.MethodGet:
		entry, ok := s.dictionary.Get(spoken)
		if !ok {
			writeError(w, errs.New(errs.NotFound, "dictionary entry %q not found", spoken))
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if !s.dictionary.Delete(spoken) {
			writeError(w, errs.New(errs.NotFound, "dictionary entry %q not found", spoken))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": spoken})
	}
}
