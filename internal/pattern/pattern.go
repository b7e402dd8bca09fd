// Package pattern generates candidate email addresses from a person's name and domain.
package pattern

import (
	"strings"
)

// Candidate is one guessed address.
type Candidate struct {
	LocalPart string
	Domain    string
}

// Address composes the full address.
func (c Candidate) Address() string {
	return c.LocalPart + "@" + c.Domain
}

// Convention is one corporate mailbox naming scheme.
type Convention struct {
	Name  string
	build func(first, last, f, l string) string
}

// Conventions lists the supported schemes, most common first. Order matters: the
// validation loop stops at the first safe address, so likely schemes go early.
var Conventions = []Convention{
	{Name: "first.last", build: func(first, last, _, _ string) string { return first + "." + last }},
	{Name: "firstlast", build: func(first, last, _, _ string) string { return first + last }},
	{Name: "first", build: func(first, _, _, _ string) string { return first }},
	{Name: "last.first", build: func(first, last, _, _ string) string { return last + "." + first }},
	{Name: "flast", build: func(_, last, f, _ string) string { return f + last }},
	{Name: "f.last", build: func(_, last, f, _ string) string { return f + "." + last }},
	{Name: "first_last", build: func(first, last, _, _ string) string { return first + "_" + last }},
	{Name: "first-last", build: func(first, last, _, _ string) string { return first + "-" + last }},
	{Name: "first.l", build: func(first, _, _, l string) string { return first + "." + l }},
	{Name: "firstl", build: func(first, _, _, l string) string { return first + l }},
	{Name: "last", build: func(_, last, _, _ string) string { return last }},
	{Name: "lastfirst", build: func(first, last, _, _ string) string { return last + first }},
	{Name: "last_first", build: func(first, last, _, _ string) string { return last + "_" + first }},
	{Name: "lastf", build: func(_, last, f, _ string) string { return last + f }},
	{Name: "last.f", build: func(_, last, f, _ string) string { return last + "." + f }},
	{Name: "f_last", build: func(_, last, f, _ string) string { return f + "_" + last }},
}

// Generate returns up to max candidates for the name at domain, in convention order
// for each name variant. Local parts are unique after lower-casing; the first
// occurrence keeps its rank. max <= 0 means no cap.
func Generate(first, last, domain string, max int) []Candidate {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil
	}

	var out []Candidate
	seen := make(map[string]struct{})
	for _, v := range Variants(first, last) {
		fn := localPart(v.First)
		ln := localPart(v.Last)
		if fn == "" || ln == "" {
			continue
		}
		fi, li := initial(fn), initial(ln)
		for _, conv := range Conventions {
			lp := strings.ToLower(conv.build(fn, ln, fi, li))
			if lp == "" {
				continue
			}
			if _, ok := seen[lp]; ok {
				continue
			}
			seen[lp] = struct{}{}
			out = append(out, Candidate{LocalPart: lp, Domain: domain})
			if max > 0 && len(out) >= max {
				return out
			}
		}
	}
	return out
}
