package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/voicebridge/asr-server/internal/audio"
	"github.com/voicebridge/asr-server/internal/errs"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/transcribe"
)

const maxUploadBytes = 64 << 20 // 64MiB, generous for a ≤30s recommendation

func readUploadedAudio(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "failed to parse multipart upload")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "missing multipart field \"file\"")
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "failed to read uploaded file")
	}
	return audio.Decode(header.Filename, raw)
}

func readUploadedAudioFiles(r *http.Request) ([]*multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "failed to parse multipart upload")
	}
	if r.MultipartForm == nil {
		return nil, errs.New(errs.InvalidInput, "no multipart files present")
	}
	return r.MultipartForm.File["files"], nil
}

func (s *Server) handlePostprocessUpload(w http.ResponseWriter, r *http.Request) {
	mode, _, _, language, err := requestOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	pcm, err := readUploadedAudio(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := transcribe.Options{
		SegmenterConfig: s.svc.SegmenterConfigFor("fixed"),
		MergeStrategy:   "simple",
		PostprocessMode: mode,
		Language:        language,
	}
	transcript, err := s.svc.RunWithOptions(r.Context(), pcm, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transcript": transcript})
}

func (s *Server) handlePostprocessUploadLong(w http.ResponseWriter, r *http.Request) {
	mode, strategy, mergeStrategy, language, err := requestOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	pcm, err := readUploadedAudio(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := transcribe.Options{
		SegmenterConfig: s.svc.SegmenterConfigFor(strategy),
		MergeStrategy:   mergeStrategy,
		PostprocessMode: mode,
		Language:        language,
	}
	transcript, err := s.svc.RunWithOptions(r.Context(), pcm, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transcript": transcript})
}

func (s *Server) handlePostprocessBatch(w http.ResponseWriter, r *http.Request) {
	mode, _, _, language, err := requestOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}

	headers, err := readUploadedAudioFiles(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(headers) == 0 {
		writeError(w, errs.New(errs.InvalidInput, "no files under multipart field \"files\""))
		return
	}

	type item struct {
		Filename   string `json:"filename"`
		Transcript string `json:"transcript,omitempty"`
		Error      string `json:"error,omitempty"`
	}
	results := make([]item, 0, len(headers))

	for _, fh := range headers {
		f, openErr := fh.Open()
		if openErr != nil {
			results = append(results, item{Filename: fh.Filename, Error: openErr.Error()})
			continue
		}
		raw, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			results = append(results, item{Filename: fh.Filename, Error: readErr.Error()})
			continue
		}
		pcm, decodeErr := audio.Decode(fh.Filename, raw)
		if decodeErr != nil {
			results = append(results, item{Filename: fh.Filename, Error: decodeErr.Error()})
			continue
		}

		opts := transcribe.Options{
			SegmenterConfig: s.svc.SegmenterConfigFor("fixed"),
			MergeStrategy:   "simple",
			PostprocessMode: mode,
			Language:        language,
		}
		transcript, runErr := s.svc.RunWithOptions(r.Context(), pcm, opts)
		if runErr != nil {
			results = append(results, item{Filename: fh.Filename, Error: runErr.Error()})
			continue
		}
		results = append(results, item{Filename: fh.Filename, Transcript: transcript})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type postprocessTextRequest struct {
	Text   string `json:"text"`
	Mode   string `json:"mode"`
	UseLLM bool   `json:"use_llm"`
}

func (s *Server) handlePostprocessText(w http.ResponseWriter, r *http.Request) {
	var req postprocessTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "invalid JSON body"))
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = postprocess.ModeStandard
	}
	if err := validatePostprocessMode(mode); err != nil {
		writeError(w, err)
		return
	}
	if req.UseLLM && mode != postprocess.ModeAdvanced {
		mode = postprocess.ModeAdvanced
	}

	processor := s.svc.Processor()
	out, stats := processor.Process(context.Background(), req.Text, postprocess.Options{
		Mode:       mode,
		Profile:    postprocess.ProfileFor(postprocess.CategoryGeneral),
		Dictionary: s.dictionary,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"text": out, "stats": stats})
}

func (s *Server) handlePostprocessConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"postprocess_mode": postprocess.ModeStandard,
			"strategy":         "hybrid",
			"merge_strategy":   "simple",
		})
		return
	}

	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.InvalidInput, err, "invalid JSON body"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": req})
}
