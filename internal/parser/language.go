package parser

import (
	"github.com/abadojack/whatlanggo"

	"inlook-corpus/internal/attrval"
)

// LanguagePredictionsAttr holds the top language guesses for a record's
// text, as an ordered (name, probability) pair vector.
const LanguagePredictionsAttr = "Language predictions"

// topLanguages returns up to n (human language name, probability) pairs
// for text, most confident first. whatlanggo only surfaces a single best
// guess per call, so the second-best prediction is obtained by asking
// again with the first guess excluded via Options.Blacklist.
func topLanguages(text string, n int) []attrval.StringFloatPair {
	if text == "" {
		return nil
	}

	out := make([]attrval.StringFloatPair, 0, n)
	blacklist := map[whatlanggo.Lang]bool{}

	for i := 0; i < n; i++ {
		info := whatlanggo.DetectWithOptions(text, whatlanggo.Options{Blacklist: blacklist})
		name := info.Lang.String()
		if name == "" {
			break
		}
		out = append(out, attrval.StringFloatPair{Key: name, Value: info.Confidence})
		blacklist[info.Lang] = true
	}
	return out
}
