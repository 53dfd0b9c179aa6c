package postprocess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/asr-server/internal/enhancer"
)

func TestModeNoneIsIdentity(t *testing.T) {
	p := NewProcessor(nil)
	text := "the the quick  brown  fox"
	out, stats := p.Process(context.Background(), text, Options{Mode: ModeNone})
	assert.Equal(t, text, out)
	assert.Equal(t, ModeNone, stats.Mode)
}

func TestBasicCollapsesDuplicatesAndWhitespace(t *testing.T) {
	p := NewProcessor(nil)
	out, stats := p.Process(context.Background(), "the the quick  brown  fox", Options{Mode: ModeBasic})
	assert.Equal(t, "the quick brown fox", out)
	assert.Equal(t, 1, stats.DuplicatesRemoved)
	assert.GreaterOrEqual(t, stats.TotalChanges, 1)
	assert.Equal(t, ModeBasic, stats.Mode)
}

func TestStandardRemovesFillers(t *testing.T) {
	p := NewProcessor(nil)
	out, stats := p.Process(context.Background(), "um hello uh this is like a test", Options{
		Mode:    ModeStandard,
		Profile: ProfileFor(CategoryGeneral),
	})
	assert.Equal(t, "hello this is a test", out)
	assert.Equal(t, 3, stats.FillersRemoved)
	assert.Equal(t, ModeStandard, stats.Mode)
}

func TestDictionaryLongestMatchWins(t *testing.T) {
	dict := NewDictionary()
	dict.Put(DictionaryEntry{Spoken: "api", Written: "API", WholeWord: true})
	dict.Put(DictionaryEntry{Spoken: "api key", Written: "API Key", WholeWord: true})

	out, n := dict.Apply("need an api key now")
	assert.Equal(t, "need an API Key now", out)
	assert.Equal(t, 1, n)
}

func TestDictionaryCaseInsensitive(t *testing.T) {
	dict := NewDictionary()
	dict.Put(DictionaryEntry{Spoken: "api", Written: "API", WholeWord: true, CaseSensitive: false})
	out, n := dict.Apply("my API key and Api call")
	assert.Equal(t, "my API key and API call", out)
	assert.Equal(t, 2, n)
}

func TestDictionaryWholeWordDoesNotMatchSubstring(t *testing.T) {
	dict := NewDictionary()
	dict.Put(DictionaryEntry{Spoken: "api", Written: "API", WholeWord: true})
	out, n := dict.Apply("rapid apiary")
	assert.Equal(t, "rapid apiary", out)
	assert.Equal(t, 0, n)
}

func TestAdvancedFallsBackToStandardOnEnhancerFailure(t *testing.T) {
	p := NewProcessor(failingEnhancer{})
	longText := "um hello this is a reasonably long test transcript for enhancement"
	out, stats := p.Process(context.Background(), longText, Options{Mode: ModeAdvanced, Profile: ProfileFor(CategoryGeneral)})
	assert.False(t, stats.AIEnhanced)
	assert.NotContains(t, out, "um ")
}

func TestAdvancedSkipsEnhancerBelowMinLength(t *testing.T) {
	p := NewProcessor(countingEnhancer{})
	out, stats := p.Process(context.Background(), "hi there", Options{Mode: ModeAdvanced, Profile: ProfileFor(CategoryGeneral)})
	require.Equal(t, "hi there", out)
	assert.False(t, stats.AIEnhanced)
}

func TestCategoryFromAppHint(t *testing.T) {
	assert.Equal(t, CategoryCoding, CategoryFromAppHint("Visual Studio Code|com.microsoft.VSCode"))
	assert.Equal(t, CategoryChat, CategoryFromAppHint("Discord|com.hnc.Discord"))
	assert.Equal(t, CategoryGeneral, CategoryFromAppHint("SomeApp|com.example.unknown"))
}

type failingEnhancer struct{}

func (failingEnhancer) Enhance(ctx context.Context, text, profileHint string) (string, error) {
	return "", assertError{}
}
func (failingEnhancer) Provider() string { return "fail" }

type assertError struct{}

func (assertError) Error() string { return "enhancer unavailable" }

type countingEnhancer struct{}

func (countingEnhancer) Enhance(ctx context.Context, text, profileHint string) (string, error) {
	return text + " ENHANCED", nil
}
func (countingEnhancer) Provider() string { return "counting" }

var _ enhancer.Enhancer = failingEnhancer{}
var _ enhancer.Enhancer = countingEnhancer{}
