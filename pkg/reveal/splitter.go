package reveal

import (
	"unicode"
	"unicode/utf8"
)

// Splitter decomposes a fragment into reveal units. Concatenating the units
// must give back the fragment.
type Splitter func(fragment string) []string

// SplitRunes yields one unit per rune.
func SplitRunes(fragment string) []string {
	ret := make([]string, 0, utf8.RuneCountInString(fragment))
	for _, r := range fragment {
		ret = append(ret, string(r))
	}
	return ret
}

// SplitWords yields one unit per word, with the whitespace that follows the
// word attached to it.
func SplitWords(fragment string) []string {
	var ret []string
	start := 0
	inSpace := false
	for i, r := range fragment {
		isSpace := unicode.IsSpace(r)
		if inSpace && !isSpace {
			ret = append(ret, fragment[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(fragment) {
		ret = append(ret, fragment[start:])
	}
	return ret
}

func SplitterForGranularity(granularity string) (Splitter, bool) {
	switch granularity {
	case "", "rune", "char":
		return SplitRunes, true
	case "word":
		return SplitWords, true
	default:
		return nil, false
	}
}
