// Package postprocess transforms a raw transcript into a user-facing
// transcript according to a mode and profile. No component of the
// teacher performs text post-processing (Discord voice transcripts pass
// through verbatim), so this module is newly authored in the teacher's
// idiom: small, table-driven pure functions over []string tokens,
// logrus-logged at the boundary that hands text to the Enhancer.
package postprocess

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/enhancer"
)

const (
	ModeNone     = "none"
	ModeBasic    = "basic"
	ModeStandard = "standard"
	ModeAdvanced = "advanced"
)

var defaultFillers = []string{"um", "uh", "like", "you know", "嗯", "啊", "那个"}

var selfCorrectionCues = []string{"no wait", "actually no", "i mean", "不对"}

// Stats reports what a single Process call did.
type Stats struct {
	FillersRemoved     int
	DuplicatesRemoved  int
	CorrectionsApplied int
	TotalChanges       int
	Mode               string
	DictReplacements   int
	AIEnhanced         bool
	AIProvider         string
}

// Options carries the per-call configuration.
type Options struct {
	Mode       string
	Profile    Profile
	Fillers    []string // overrides defaultFillers when non-nil
	Dictionary *Dictionary
}

// Processor applies post-processing, dispatching to an Enhancer for the
// advanced mode.
type Processor struct {
	enh enhancer.Enhancer
}

func NewProcessor(enh enhancer.Enhancer) *Processor {
	if enh == nil {
		enh = enhancer.None{}
	}
	return &Processor{enh: enh}
}

// Process runs opts.Mode over text and returns the cleaned transcript
// plus statistics.
func (p *Processor) Process(ctx context.Context, text string, opts Options) (string, Stats) {
	stats := Stats{Mode: opts.Mode}
	if opts.Mode == "" || opts.Mode == ModeNone {
		stats.Mode = ModeNone
		return text, stats
	}

	out, dupes := collapseDuplicateWords(text)
	stats.DuplicatesRemoved = dupes
	out = normalizeWhitespaceAndPunctuation(out)

	if opts.Mode == ModeBasic {
		stats.TotalChanges = dupes
		return out, stats
	}

	fillers := opts.Fillers
	if fillers == nil {
		fillers = defaultFillers
	}
	if opts.Profile.DropFillers {
		var removed int
		out, removed = removeFillers(out, fillers)
		stats.FillersRemoved = removed
	}

	var corrections int
	out, corrections = applySelfCorrections(out)
	stats.CorrectionsApplied = corrections

	if opts.Profile.ParagraphBreaks {
		out = insertParagraphBreaksAtBlankLines(out)
	}

	if opts.Dictionary != nil {
		var replaced int
		out, replaced = opts.Dictionary.Apply(out)
		stats.DictReplacements = replaced
	}

	stats.TotalChanges = stats.DuplicatesRemoved + stats.FillersRemoved + stats.CorrectionsApplied + stats.DictReplacements

	if opts.Mode != ModeAdvanced {
		return out, stats
	}

	if len([]rune(out)) < enhancer.MinEnhanceLength {
		return out, stats
	}

	enhanced, err := p.enh.Enhance(ctx, out, string(opts.Profile.Category))
	if err != nil {
		logrus.WithError(err).Warn("enhancer failed, falling back to standard output")
		return out, stats
	}
	stats.AIEnhanced = true
	stats.AIProvider = p.enh.Provider()
	stats.TotalChanges++
	return enhanced, stats
}

// collapseDuplicateWords removes immediate word-level duplicates
// ("the the" -> "the"), case-insensitively, within each line; line
// breaks are kept.
func collapseDuplicateWords(text string) (string, int) {
	if len(strings.Fields(text)) == 0 {
		return text, 0
	}
	lines := strings.Split(text, "\n")
	removed := 0
	for li, line := range lines {
		words := strings.Fields(line)
		out := make([]string, 0, len(words))
		for _, w := range words {
			if len(out) > 0 && strings.EqualFold(out[len(out)-1], w) {
				removed++
				continue
			}
			out = append(out, w)
		}
		lines[li] = strings.Join(out, " ")
	}
	return strings.Join(lines, "\n"), removed
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var spaceBeforePunct = regexp.MustCompile(`\s+([,.!?;:])`)

func normalizeWhitespaceAndPunctuation(text string) string {
	text = multiSpace.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// fillerPattern builds the removal regex for one filler. RE2's \b is
// ASCII-only (word = [0-9A-Za-z_]), so it never matches on either side of a
// CJK filler such as "嗯" or "那个" — every rune there is \W, meaning the
// boundary anchors simply fail to fire and the filler is never removed.
// Anchor on \b only for fillers made entirely of ASCII word runes; match
// CJK (and other non-ASCII-word) fillers literally instead.
func fillerPattern(f string) string {
	if isASCIIWord(f) {
		return `(?i)\b` + regexp.QuoteMeta(f) + `\b`
	}
	return regexp.QuoteMeta(f)
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == ' ' {
			continue
		}
		return false
	}
	return true
}

func removeFillers(text string, fillers []string) (string, int) {
	removed := 0
	out := text
	for _, f := range fillers {
		re, err := regexp.Compile(fillerPattern(f))
		if err != nil {
			continue
		}
		matches := re.FindAllStringIndex(out, -1)
		if len(matches) == 0 {
			continue
		}
		removed += len(matches)
		out = re.ReplaceAllString(out, "")
	}
	return normalizeWhitespaceAndPunctuation(out), removed
}

// applySelfCorrections finds a correction cue and drops the phrase
// preceding it up to the previous sentence boundary, together with the
// cue itself, keeping the text after the cue.
func applySelfCorrections(text string) (string, int) {
	applied := 0
	lower := strings.ToLower(text)
	for _, cue := range selfCorrectionCues {
		idx := strings.Index(lower, strings.ToLower(cue))
		if idx < 0 {
			continue
		}
		boundary := lastSentenceBoundary(text, idx)
		text = text[:boundary] + text[idx+len(cue):]
		lower = strings.ToLower(text)
		applied++
	}
	return strings.TrimSpace(normalizeWhitespaceAndPunctuation(text)), applied
}

func lastSentenceBoundary(text string, before int) int {
	for i := before - 1; i >= 0; i-- {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			return i + 1
		}
	}
	return 0
}

// insertParagraphBreaksAtBlankLines turns runs of blank lines (already
// inserted by the pipeline's smart merge at detected silences) into a
// canonical double newline.
func insertParagraphBreaksAtBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" && len(out) > 0 && out[len(out)-1] == "" {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
