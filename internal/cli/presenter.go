// Package cli renders recommendations for the eiga command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/pkg/utils"
)

// OutputFormat is the format for recommendation output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per movie.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// Tips explains how to phrase a query.
const Tips = `How to use:
  1. Describe your favorite movie genres, themes, or elements
  2. Be specific ("sci-fi with space travel and aliens" works better than just "sci-fi")
  3. Avoid special characters or very short queries`

// Presenter writes a recommendation response to w.
type Presenter interface {
	Present(w io.Writer, resp *models.RecommendResponse) error
}

// NewPresenter returns the presenter for format. Unknown formats are an error.
func NewPresenter(format OutputFormat) (Presenter, error) {
	switch format {
	case OutputText, "":
		return TextPresenter{OverviewChars: 200}, nil
	case OutputCompact:
		return CompactPresenter{}, nil
	case OutputJSON:
		return JSONPresenter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: text, compact, json)", format)
	}
}

// TextPresenter prints a block per movie with genres, match score and poster.
type TextPresenter struct {
	OverviewChars int
}

func (p TextPresenter) Present(w io.Writer, resp *models.RecommendResponse) error {
	if len(resp.Recommendations) == 0 {
		_, err := fmt.Fprintln(w, "\nNo recommendations found.")
		return err
	}
	if resp.Seed != nil {
		fmt.Fprintf(w, "\nHere are %d movies similar to %s (%dms):\n\n", resp.Total, resp.Seed.Title, resp.QueryTime)
	} else {
		fmt.Fprintf(w, "\nHere are your top %d movie recommendations (%dms):\n\n", resp.Total, resp.QueryTime)
	}
	for _, rec := range resp.Recommendations {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s\n", rec.Rank, rec.Movie.Title)
		if len(rec.Movie.Genres) > 0 {
			fmt.Fprintf(w, "   Genres:      %s\n", strings.Join(rec.Movie.Genres, ", "))
		}
		fmt.Fprintf(w, "   Match score: %d%% %s\n", rec.MatchPercent, matchBar(rec.MatchPercent))
		switch {
		case rec.PosterURL != "":
			fmt.Fprintf(w, "   Poster:      %s\n", rec.PosterURL)
		case rec.Movie.HasPoster():
			// No poster base URL configured; show the catalog path.
			fmt.Fprintf(w, "   Poster:      %s\n", rec.Movie.PosterPath)
		default:
			fmt.Fprintln(w, "   Poster not available.")
		}
		if rec.Movie.Overview != "" {
			fmt.Fprintf(w, "\n   %s\n", utils.Truncate(rec.Movie.Overview, p.OverviewChars))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// matchBar draws a 20-cell progress bar for a 0-100 percentage.
func matchBar(percent int) string {
	filled := percent / 5
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", 20-filled) + "]"
}

// CompactPresenter prints "rank. title (NN%)" per line.
type CompactPresenter struct{}

func (CompactPresenter) Present(w io.Writer, resp *models.RecommendResponse) error {
	for _, rec := range resp.Recommendations {
		if _, err := fmt.Fprintf(w, "%d. %s (%d%%)\n", rec.Rank, rec.Movie.Title, rec.MatchPercent); err != nil {
			return err
		}
	}
	return nil
}

// JSONPresenter writes the response as indented JSON.
type JSONPresenter struct{}

func (JSONPresenter) Present(w io.Writer, resp *models.RecommendResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
