package pattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addresses(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Address())
	}
	return out
}

func TestGenerate_JohnDoeTopFive(t *testing.T) {
	t.Parallel()

	got := addresses(Generate("John", "Doe", "acme.com", 5))
	want := []string{
		"john.doe@acme.com",
		"johndoe@acme.com",
		"john@acme.com",
		"doe.john@acme.com",
		"jdoe@acme.com",
	}
	require.Equal(t, want, got)
}

func TestGenerate_AllConventionsInOrder(t *testing.T) {
	t.Parallel()

	got := Generate("John", "Doe", "acme.com", 0)
	require.Len(t, got, len(Conventions))

	want := []string{
		"john.doe", "johndoe", "john", "doe.john", "jdoe", "j.doe",
		"john_doe", "john-doe", "john.d", "johnd", "doe", "doejohn",
		"doe_john", "doej", "doe.j", "j_doe",
	}
	for i, c := range got {
		assert.Equal(t, want[i], c.LocalPart, "rank %d (%s)", i, Conventions[i].Name)
		assert.Equal(t, "acme.com", c.Domain)
	}
}

func TestGenerate_Properties(t *testing.T) {
	t.Parallel()

	names := []struct{ first, last, domain string }{
		{"John", "Doe", "acme.com"},
		{"Jean-Pierre", "Dupont", "Example.FR"},
		{"María José", "Núñez", "empresa.es"},
		{"Al", "Li", "x.io"},
		{"O'Brien", "Mc Donald", "pub.ie"},
	}
	for _, n := range names {
		for _, max := range []int{1, 3, 7, 20, 100} {
			got := Generate(n.first, n.last, n.domain, max)

			assert.LessOrEqual(t, len(got), max)

			seen := map[string]bool{}
			for _, c := range got {
				key := strings.ToLower(c.LocalPart)
				assert.False(t, seen[key], "duplicate %q for %s %s", key, n.first, n.last)
				seen[key] = true
				assert.Equal(t, strings.ToLower(n.domain), c.Domain)
			}

			again := Generate(n.first, n.last, n.domain, max)
			assert.Equal(t, got, again, "generation must be deterministic")
		}
	}
}

func TestGenerate_PrefixStableUnderCap(t *testing.T) {
	t.Parallel()

	full := Generate("Jean-Pierre", "Dupont", "example.fr", 0)
	for max := 1; max < len(full); max++ {
		assert.Equal(t, full[:max], Generate("Jean-Pierre", "Dupont", "example.fr", max))
	}
}

func TestGenerate_HyphenatedFirstName(t *testing.T) {
	t.Parallel()

	got := addresses(Generate("Jean-Pierre", "Dupont", "example.fr", 0))
	require.NotEmpty(t, got)
	assert.Equal(t, "jean-pierre.dupont@example.fr", got[0])
	assert.Contains(t, got, "jeanpierre.dupont@example.fr")
	assert.Contains(t, got, "jean.dupont@example.fr")
	assert.Less(t, indexOf(got, "jean-pierre.dupont@example.fr"), indexOf(got, "jeanpierre.dupont@example.fr"))
	assert.Less(t, indexOf(got, "jeanpierre.dupont@example.fr"), indexOf(got, "jean.dupont@example.fr"))
}

func TestGenerate_AccentsFolded(t *testing.T) {
	t.Parallel()

	got := addresses(Generate("José", "Núñez", "empresa.es", 0))
	assert.Equal(t, "josé.núñez@empresa.es", got[0])
	assert.Contains(t, got, "jose.nunez@empresa.es")
}

func TestGenerate_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Generate("", "Doe", "acme.com", 20))
	assert.Empty(t, Generate("John", "'", "acme.com", 20))
	assert.Empty(t, Generate("John", "Doe", " ", 20))
}

func TestVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		first string
		last  string
		want  []Name
	}{
		{name: "plain", first: "John", last: "Doe", want: []Name{{"John", "Doe"}}},
		{
			name: "hyphenated", first: "Jean-Pierre", last: "Dupont",
			want: []Name{{"Jean-Pierre", "Dupont"}, {"JeanPierre", "Dupont"}, {"Jean", "Dupont"}},
		},
		{
			name: "accented", first: "Zoë", last: "Müller",
			want: []Name{{"Zoë", "Müller"}, {"Zoe", "Muller"}},
		},
		{name: "trimmed", first: "  Ann ", last: " Lee", want: []Name{{"Ann", "Lee"}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Variants(tt.first, tt.last))
		})
	}
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}
