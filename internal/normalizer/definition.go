package normalizer

import "unicode"

// The definition-line patterns depend on look-behind and look-ahead, which
// regexp does not support, so they are matched by hand. Semantics follow a
// backtracking engine: leftmost start wins, then the shortest body. The body
// never spans a newline.
//
//	strain:  (?<=strain\s).+?(?=\s[^0-9]|,|\.[^0-9])
//	isolate: (?<=isolate\s)([A-Za-z]*\s)?.+?(?=\s|\.[^0-9]|,)

const (
	strainToken  = "strain"
	isolateToken = "isolate"
)

func matchStrain(def string) (string, bool) {
	r := []rune(def)

	for _, start := range tokenStarts(r, strainToken) {
		if end, ok := lazyBody(r, start, strainStop); ok {
			return string(r[start:end]), true
		}
	}

	return "", false
}

func matchIsolate(def string) (string, bool) {
	r := []rune(def)

	for _, start := range tokenStarts(r, isolateToken) {
		// Optional leading word: only possible when the letter run is
		// directly followed by whitespace.
		if n := letterRun(r, start); start+n < len(r) && isSpace(r[start+n]) {
			if end, ok := lazyBody(r, start+n+1, isolateStop); ok {
				return string(r[start:end]), true
			}
		}

		if end, ok := lazyBody(r, start, isolateStop); ok {
			return string(r[start:end]), true
		}
	}

	return "", false
}

// tokenStarts lists, in ascending order, the positions right after every
// occurrence of token followed by one whitespace character.
func tokenStarts(r []rune, token string) []int {
	tok := []rune(token)

	var starts []int

	for i := 0; i+len(tok) < len(r); i++ {
		if !hasPrefixAt(r, i, tok) || !isSpace(r[i+len(tok)]) {
			continue
		}

		starts = append(starts, i+len(tok)+1)
	}

	return starts
}

// lazyBody returns the smallest end > from such that r[from:end] has no
// newline and stop(r, end) holds.
func lazyBody(r []rune, from int, stop func([]rune, int) bool) (int, bool) {
	for end := from + 1; end <= len(r); end++ {
		if r[end-1] == '\n' {
			return 0, false
		}

		if stop(r, end) {
			return end, true
		}
	}

	return 0, false
}

// strainStop: whitespace then a non-digit, a comma, or a period then a non-digit.
func strainStop(r []rune, p int) bool {
	if p >= len(r) {
		return false
	}

	switch {
	case r[p] == ',':
		return true
	case isSpace(r[p]), r[p] == '.':
		return p+1 < len(r) && !isDigit(r[p+1])
	}

	return false
}

// isolateStop: any whitespace, a period then a non-digit, or a comma.
func isolateStop(r []rune, p int) bool {
	if p >= len(r) {
		return false
	}

	switch {
	case isSpace(r[p]), r[p] == ',':
		return true
	case r[p] == '.':
		return p+1 < len(r) && !isDigit(r[p+1])
	}

	return false
}

func hasPrefixAt(r []rune, i int, tok []rune) bool {
	if i+len(tok) > len(r) {
		return false
	}

	for j, c := range tok {
		if r[i+j] != c {
			return false
		}
	}

	return true
}

func letterRun(r []rune, from int) int {
	n := 0
	for from+n < len(r) && isASCIILetter(r[from+n]) {
		n++
	}

	return n
}

func isASCIILetter(c rune) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c rune) bool {
	return '0' <= c && c <= '9'
}

func isSpace(c rune) bool {
	return unicode.IsSpace(c) || (0x1c <= c && c <= 0x1f)
}
