package search

import (
	"github.com/xrash/smetrics"

	"github.com/Zakerman110/master-work-644/models"
)

// Score is the normalized indel similarity of a and b in the range 0-100.
// Comparison is literal and case-sensitive. Lengths are counted in runes,
// except for pairs using more than 256 distinct runes between them, which
// are compared byte by byte.
func Score(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	x, y := compact(a, b)
	total := len(x) + len(y)
	// insert and delete cost 1, substitution is a delete plus an insert
	dist := smetrics.WagnerFischer(x, y, 1, 1, 2)
	return 100 * (1 - float64(dist)/float64(total))
}

// compact maps every distinct rune of a and b to a single byte so the
// byte-oriented distance counts characters rather than UTF-8 bytes. When the
// pair uses more than 256 distinct runes the raw strings are returned.
func compact(a, b string) (string, string) {
	codes := make(map[rune]byte)
	encode := func(s string) ([]byte, bool) {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			c, ok := codes[r]
			if !ok {
				if len(codes) == 256 {
					return nil, false
				}
				c = byte(len(codes))
				codes[r] = c
			}
			out = append(out, c)
		}
		return out, true
	}

	x, ok := encode(a)
	if !ok {
		return a, b
	}
	y, ok := encode(b)
	if !ok {
		return a, b
	}
	return string(x), string(y)
}

// BestMatch scores every candidate name against target and returns the
// highest-scoring one. A candidate replaces the current best only on a
// strictly greater score, so the first of several equal scores wins and a
// score of zero never matches. Returns false when nothing matched.
func BestMatch(target string, candidates []models.SearchResult) (models.MatchCandidate, bool) {
	var best models.MatchCandidate
	var bestScore float64
	found := false

	for _, c := range candidates {
		score := Score(target, c.Name)
		if score > bestScore {
			bestScore = score
			best = models.MatchCandidate{SearchResult: c, Score: score}
			found = true
		}
	}
	return best, found
}

// Tracker folds the per-phrase best matches of one marketplace into a single
// winner. A later phrase only takes over when it scores strictly higher.
type Tracker struct {
	best   models.MatchCandidate
	phrase string
	found  bool
}

// Offer records the best match for phrase and reports whether it became the new winner
func (t *Tracker) Offer(phrase string, m models.MatchCandidate) bool {
	if t.found && m.Score <= t.best.Score {
		return false
	}
	if m.Score <= 0 {
		return false
	}
	t.best, t.phrase, t.found = m, phrase, true
	return true
}

// Best returns the winning candidate and the phrase that produced it
func (t *Tracker) Best() (models.MatchCandidate, string, bool) {
	return t.best, t.phrase, t.found
}
