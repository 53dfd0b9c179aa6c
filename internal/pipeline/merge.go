package pipeline

import (
	"strings"

	"github.com/voicebridge/asr-server/internal/segmenter"
)

const (
	MergeSimple  = "simple"
	MergeOverlap = "overlap"
	MergeSmart   = "smart"
)

// MergeStats reports what the merge step did, surfaced to callers mostly
// for diagnostics.
type MergeStats struct {
	Strategy        string
	SegmentsMerged  int
	OverlapsResolved int
}

// Merge combines per-segment transcriptions into one final transcript
// using strategy. Segments with a transcription error contribute nothing
// (they were already isolated by the orchestrator).
func Merge(segs []segmenter.Segment, results []Transcription, strategy string) (string, MergeStats) {
	texts := make([]string, 0, len(results))
	for _, t := range results {
		if t.Err == nil && t.Text != "" {
			texts = append(texts, t.Text)
		}
	}

	switch strategy {
	case MergeOverlap:
		merged, resolved := mergeOverlap(segs, results)
		return merged, MergeStats{Strategy: strategy, SegmentsMerged: len(texts), OverlapsResolved: resolved}
	case MergeSmart:
		merged, resolved := mergeOverlap(segs, results)
		merged = applySentenceBoundaries(merged, segs, results)
		return merged, MergeStats{Strategy: strategy, SegmentsMerged: len(texts), OverlapsResolved: resolved}
	default:
		return mergeSimple(texts), MergeStats{Strategy: MergeSimple, SegmentsMerged: len(texts)}
	}
}

// mergeSimple concatenates with single spaces and trims duplicate
// whitespace. O(N).
func mergeSimple(texts []string) string {
	var nonEmpty []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// mergeOverlap joins consecutive segment texts, removing the longest
// common suffix-of-A / prefix-of-B at word granularity whenever the
// segmenter recorded an explicit overlap between them.
func mergeOverlap(segs []segmenter.Segment, results []Transcription) (string, int) {
	overlapBySegment := make(map[int]int, len(segs))
	for _, s := range segs {
		overlapBySegment[s.Index] = s.Overlap
	}

	var out []string
	resolved := 0
	for _, t := range results {
		if t.Err != nil || t.Text == "" {
			continue
		}
		words := strings.Fields(t.Text)
		if len(out) > 0 && overlapBySegment[t.SegmentIndex] > 0 {
			trimmed, found := trimCommonAffix(out, words)
			if found {
				resolved++
			}
			out = trimmed
			continue
		}
		out = append(out, words...)
	}
	return strings.Join(out, " "), resolved
}

// trimCommonAffix finds the longest suffix of prev that equals a prefix
// of next (word granularity) and returns prev with next appended, minus
// the duplicated words. Searches a bounded window since the overlap is
// only ever a few seconds of audio.
func trimCommonAffix(prev []string, next []string) ([]string, bool) {
	const maxWindow = 24
	prevWindow := prev
	if len(prevWindow) > maxWindow {
		prevWindow = prevWindow[len(prevWindow)-maxWindow:]
	}
	nextWindow := next
	if len(nextWindow) > maxWindow {
		nextWindow = nextWindow[:maxWindow]
	}

	best := 0
	for l := min(len(prevWindow), len(nextWindow)); l > 0; l-- {
		suffix := prevWindow[len(prevWindow)-l:]
		prefix := nextWindow[:l]
		if equalWords(suffix, prefix) {
			best = l
			break
		}
	}

	if best == 0 {
		return append(append([]string{}, prev...), next...), false
	}
	merged := append([]string{}, prev...)
	merged = append(merged, next[best:]...)
	return merged, true
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// applySentenceBoundaries inserts paragraph breaks at segment boundaries
// whose silence gap (captured as the absence of declared overlap between
// consecutive segments) exceeds the smart-merge threshold. The exact
// silence duration is not carried on Transcription, so this uses the
// segmenter's own boundary information: a non-overlapping boundary
// between two VAD/hybrid-produced segments is treated as a detected
// silence and gets a paragraph break; overlapping boundaries (continuous
// fixed-window speech) do not; within a paragraph, overlapping boundaries
// are joined with the same duplicate-word trimming as mergeOverlap.
func applySentenceBoundaries(merged string, segs []segmenter.Segment, results []Transcription) string {
	if len(segs) < 2 {
		return merged
	}
	var b strings.Builder
	var para []string
	for i, t := range results {
		if t.Err != nil || t.Text == "" {
			continue
		}
		words := strings.Fields(t.Text)
		if len(para) > 0 && i < len(segs) && segs[i].Overlap == 0 {
			b.WriteString(strings.Join(para, " ") + "\n\n")
			para = words
		} else if len(para) > 0 {
			para, _ = trimCommonAffix(para, words)
		} else {
			para = words
		}
	}
	b.WriteString(strings.Join(para, " "))
	return b.String()
}
