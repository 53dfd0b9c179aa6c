package httpapi

import (
	"net/http"

	"github.com/voicebridge/asr-server/internal/errs"
	"github.com/voicebridge/asr-server/internal/pipeline"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/segmenter"
)

// requestOptions resolves the §6.2 enumerated request parameters from the
// query string, defaulting any that are absent and rejecting any that
// name an unknown enum value.
func requestOptions(r *http.Request) (mode, strategy, mergeStrategy, language string, err error) {
	mode = valueOr(r, "postprocess_mode", postprocess.ModeStandard)
	if err := validatePostprocessMode(mode); err != nil {
		return "", "", "", "", err
	}

	strategy = valueOr(r, "strategy", segmenter.StrategyHybrid)
	switch strategy {
	case segmenter.StrategyFixed, segmenter.StrategyVAD, segmenter.StrategyHybrid:
	default:
		return "", "", "", "", errs.New(errs.InvalidInput, "unknown strategy %q", strategy)
	}

	mergeStrategy = valueOr(r, "merge_strategy", pipeline.MergeSimple)
	switch mergeStrategy {
	case pipeline.MergeSimple, pipeline.MergeOverlap, pipeline.MergeSmart:
	default:
		return "", "", "", "", errs.New(errs.InvalidInput, "unknown merge_strategy %q", mergeStrategy)
	}

	language = valueOr(r, "language", "auto")
	return mode, strategy, mergeStrategy, language, nil
}

// validatePostprocessMode rejects any postprocess_mode/mode value outside
// the §4.4 enum instead of silently falling through to standard behavior.
func validatePostprocessMode(mode string) error {
	switch mode {
	case postprocess.ModeNone, postprocess.ModeBasic, postprocess.ModeStandard, postprocess.ModeAdvanced:
		return nil
	default:
		return errs.New(errs.InvalidInput, "unknown postprocess_mode %q", mode)
	}
}

func valueOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}
