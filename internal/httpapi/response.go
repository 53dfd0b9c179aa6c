package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/voicebridge/asr-server/internal/errs"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err's errs.Kind to a status code and a uniform body,
// the single place §7's kind-to-status table is realized.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    string(kind),
			"message": err.Error(),
		},
	}
	if rle, ok := err.(*errs.Error); ok && kind == errs.RateLimited {
		body["error"].(map[string]interface{})["retry_after"] = rle.RetryAfter
	}
	writeJSON(w, errs.StatusCode(kind), body)
}
