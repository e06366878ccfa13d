package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/pkg/utils"
	"github.com/xuri/excelize/v2"
)

// ErrNoTitleColumn is returned when a metadata table has no title column.
var ErrNoTitleColumn = errors.New("metadata has no title column")

// Recognized header names (case-insensitive). "text" is the legacy combined
// title/genres/keywords column; genres are derived from it when no genres column exists.
var columnAliases = map[string]string{
	"id":          "id",
	"movie_id":    "id",
	"tmdb_id":     "id",
	"title":       "title",
	"overview":    "overview",
	"description": "overview",
	"genres":      "genres",
	"genre":       "genres",
	"poster_path": "poster_path",
	"poster":      "poster_path",
	"text":        "text",
}

// ReadMetadata reads movie metadata from a .csv, .tsv or .xlsx file. Rows keep file order;
// row i (after the header) becomes catalog position i.
func ReadMetadata(path string) ([]models.Movie, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open metadata: %w", err)
		}
		defer f.Close()
		comma := ','
		if ext == ".tsv" {
			comma = '\t'
		}
		return readDelimited(f, comma)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported metadata format %q (supported: .csv, .tsv, .xlsx)", ext)
	}
}

func readDelimited(r io.Reader, comma rune) ([]models.Movie, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return parseRows(rows)
}

func readXLSX(path string) ([]models.Movie, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return parseRows(rows)
}

// parseRows maps a header row plus data rows to movies. Missing ids default to the row's position.
func parseRows(rows [][]string) ([]models.Movie, error) {
	if len(rows) == 0 {
		return nil, errors.New("metadata is empty")
	}
	cols := make(map[string]int)
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := columnAliases[name]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["title"]; !ok {
		return nil, ErrNoTitleColumn
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	movies := make([]models.Movie, 0, len(rows)-1)
	for n, row := range rows[1:] {
		pos := len(movies)
		m := models.Movie{
			Position:   pos,
			ID:         cell(row, "id"),
			Title:      Preprocess(cell(row, "title")),
			Overview:   Preprocess(cell(row, "overview")),
			PosterPath: cell(row, "poster_path"),
		}
		if m.Title == "" {
			return nil, fmt.Errorf("metadata row %d: empty title", n+2)
		}
		if m.ID == "" {
			m.ID = strconv.Itoa(pos)
		}
		if _, ok := cols["genres"]; ok {
			m.Genres = utils.SplitList(cell(row, "genres"))
		} else {
			m.Genres = GenresFromText(cell(row, "text"), m.Title)
		}
		movies = append(movies, m)
	}
	return movies, nil
}

// GenresFromText extracts genres from a combined "Title Genre1 Genre2 [keywords]" string:
// the text after the first occurrence of title and before the first '['.
func GenresFromText(text, title string) []string {
	if text == "" || title == "" {
		return nil
	}
	i := strings.Index(text, title)
	if i < 0 {
		return nil
	}
	rest := text[i+len(title):]
	if j := strings.IndexByte(rest, '['); j >= 0 {
		rest = rest[:j]
	}
	rest = strings.TrimSpace(rest)
	if strings.ContainsAny(rest, "|,") {
		return utils.SplitList(rest)
	}
	return strings.Fields(rest)
}
