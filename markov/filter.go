package markov

import (
	"strings"
	"unicode"
)

// DefaultMinASCIIRatio is the share of letters that must be [a-zA-Z] for a
// message to count as target-language text.
const DefaultMinASCIIRatio = 0.7

// DefaultKnownBots are chat bots whose output should never be learned.
var DefaultKnownBots = []string{
	"streamelements", "nightbot", "sery_bot", "wizebot", "kofistreambot",
	"botrixoficial", "tangiabot", "moobot", "own3d", "creatisbot",
	"frostytoolsdotcom", "streamlabs", "pokemoncommunitygame", "fossabot",
	"soundalerts", "botbandera", "overlayexpert", "trackerggbot",
	"songlistbot", "commanderroot", "instructbot", "autogpttest",
	"aerokickbot", "streamerelem", "ronniabot", "tune2livebot",
	"peepostreambot", "playwithviewersbot", "hexe_bot", "super_sweet_bot",
	"streamroutine_bot", "remasuri_bot", "milanitommasobot", "jeetbot",
	"bot584588", "lurky_dogg",
}

var urlMarkers = []string{"http", ".com", ".net", ".org"}

// Verdict is the outcome of a filter check. Accept is the zero value.
type Verdict string

const (
	Accept         Verdict = ""
	RejectEmpty    Verdict = "empty"
	RejectSelf     Verdict = "self"
	RejectKnownBot Verdict = "known_bot"
	RejectURL      Verdict = "url"
	RejectLanguage Verdict = "language"
)

// Accepted reports whether the message may reach the learner.
func (v Verdict) Accepted() bool { return v == Accept }

// Filter decides which messages may influence the model. It holds no mutable
// state and is safe for concurrent use.
type Filter struct {
	knownBots map[string]struct{}
	minRatio  float64
}

// NewFilter builds a Filter for the given bot names (matched case-insensitively)
// and minimum ASCII letter ratio. A ratio <= 0 uses DefaultMinASCIIRatio.
func NewFilter(knownBots []string, minRatio float64) *Filter {
	if minRatio <= 0 {
		minRatio = DefaultMinASCIIRatio
	}
	f := &Filter{knownBots: make(map[string]struct{}, len(knownBots)), minRatio: minRatio}
	for _, b := range knownBots {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			f.knownBots[b] = struct{}{}
		}
	}
	return f
}

// IsKnownBot reports whether author is in the known-bot set.
func (f *Filter) IsKnownBot(author string) bool {
	_, ok := f.knownBots[strings.ToLower(author)]
	return ok
}

// Check applies the rejection rules in order; the first match wins.
func (f *Filter) Check(text, author, botAccount string) Verdict {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(author) == "" {
		return RejectEmpty
	}
	if strings.EqualFold(author, botAccount) {
		return RejectSelf
	}
	if f.IsKnownBot(author) {
		return RejectKnownBot
	}
	lower := strings.ToLower(text)
	for _, m := range urlMarkers {
		if strings.Contains(lower, m) {
			return RejectURL
		}
	}
	if ratio, ok := ASCIILetterRatio(text); ok && ratio < f.minRatio {
		return RejectLanguage
	}
	return Accept
}

// ASCIILetterRatio returns the share of letters in s that are [a-zA-Z].
// ok is false when s has no letters at all.
func ASCIILetterRatio(s string) (ratio float64, ok bool) {
	var total, ascii int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			ascii++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(ascii) / float64(total), true
}
