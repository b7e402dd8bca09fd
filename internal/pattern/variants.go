package pattern

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name is one spelling of a person's first and last name.
type Name struct {
	First string
	Last  string
}

// Variants returns the spellings worth trying for a name, in rank order:
// the name as given, the first name without hyphens, the first hyphen-separated part
// of the first name, and an accent-folded spelling when the name is not plain ASCII.
// Duplicates are removed keeping the first occurrence.
//
//	Jean-Pierre Dupont -> Jean-Pierre, JeanPierre, Jean
//	María José         -> María José, Maria Jose
func Variants(first, last string) []Name {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	candidates := []Name{
		{First: first, Last: last},
		{First: strings.ReplaceAll(first, "-", ""), Last: last},
		{First: strings.SplitN(first, "-", 2)[0], Last: last},
	}
	if !isASCII(first + last) {
		candidates = append(candidates, Name{First: foldAccents(first), Last: foldAccents(last)})
	}

	seen := make(map[Name]struct{}, len(candidates))
	out := make([]Name, 0, len(candidates))
	for _, n := range candidates {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// foldAccents strips combining marks after canonical decomposition (é -> e).
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// localPart reduces a name part to characters usable in a mailbox name: lower-cased
// letters and digits, with inner hyphens kept. Spaces, apostrophes and dots are dropped.
func localPart(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

func initial(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
