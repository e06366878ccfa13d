package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/hyperjump/eiga/internal/models"
)

// ErrTitleNotFound is returned when no catalog title is close enough to the requested one.
var ErrTitleNotFound = errors.New("no movie with a matching title")

// maxTitleDistance is the base edit budget for a title lookup. Longer titles get
// one extra edit per eight runes.
const maxTitleDistance = 2

// TitleSuggestion is a catalog title and its edit distance from a lookup.
type TitleSuggestion struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Distance int    `json:"distance"`
}

// FindTitle returns the movie whose title best matches title. An exact match
// (ignoring case, punctuation and spacing) wins; otherwise the closest title within
// the edit budget is returned, with ties going to the lower position.
func (c *Catalog) FindTitle(title string) (models.Movie, error) {
	want := normalizeTitle(title)
	if want == "" {
		return models.Movie{}, fmt.Errorf("%w: empty title", ErrTitleNotFound)
	}
	suggestions := c.suggest(want, 1)
	if len(suggestions) == 0 {
		return models.Movie{}, fmt.Errorf("%w: %q", ErrTitleNotFound, title)
	}
	m, _ := c.Movie(suggestions[0].Position)
	return m, nil
}

// SuggestTitles returns up to n titles within the edit budget of title, closest first.
func (c *Catalog) SuggestTitles(title string, n int) []TitleSuggestion {
	want := normalizeTitle(title)
	if want == "" || n <= 0 {
		return nil
	}
	return c.suggest(want, n)
}

func (c *Catalog) suggest(want string, n int) []TitleSuggestion {
	budget := maxTitleDistance + len([]rune(want))/8
	var out []TitleSuggestion
	for i := 0; i < c.Len(); i++ {
		got := normalizeTitle(c.movies[i].Title)
		// Quick length check: a length gap larger than the budget can't be within it.
		if diff := len([]rune(got)) - len([]rune(want)); diff > budget || -diff > budget {
			continue
		}
		d := damerauLevenshtein(want, got)
		if d > budget {
			continue
		}
		out = append(out, TitleSuggestion{Position: i, Title: c.movies[i].Title, Distance: d})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Distance < out[b].Distance })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// normalizeTitle lowercases s, drops punctuation and collapses whitespace.
func normalizeTitle(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// damerauLevenshtein counts insertions, deletions, substitutions and adjacent
// transpositions needed to turn a into b.
func damerauLevenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+cost)
			}
		}
	}
	return d[len(ra)][len(rb)]
}
