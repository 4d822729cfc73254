// Package dataset loads tabular document collections and writes anonymized
// output. Column selection and multi-column merging live here, outside the
// engine: the pipeline only ever sees one text blob per document.
package dataset

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// contentKeywords mark column names likely to hold resume content when no
// explicit content column is configured.
var contentKeywords = []string{"content", "description", "detail", "skill", "education", "company"}

// Table is a loaded CSV with a header row.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV loads path tolerantly: rows with the wrong field count are padded
// or truncated to the header width and counted, not fatal.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}

	header := records[0]
	width := len(header)
	var rows [][]string
	bad := 0
	for _, rec := range records[1:] {
		if len(rec) != width {
			bad++
			fixed := make([]string, width)
			copy(fixed, rec)
			rec = fixed
		}
		rows = append(rows, rec)
	}
	if bad > 0 {
		log.Warn().Int("rows", bad).Str("path", path).Msg("rows with unexpected field count were padded or truncated")
	}

	return &Table{Header: header, Rows: rows}, nil
}

// columnIndex returns the index of name in the header, or -1.
func (t *Table) columnIndex(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// ContentTexts returns one text blob per row. When column names an existing
// column, its values are used directly. Otherwise columns whose names contain
// a content keyword are concatenated with blank lines; if none match, every
// non-id column is used. The second return value lists the columns used.
func (t *Table) ContentTexts(column string) ([]string, []string) {
	if column != "" {
		if idx := t.columnIndex(column); idx >= 0 {
			texts := make([]string, len(t.Rows))
			for i, row := range t.Rows {
				texts[i] = row[idx]
			}
			return texts, []string{t.Header[idx]}
		}
		log.Warn().Str("column", column).Msg("content column not found, merging candidate columns")
	}

	var indices []int
	for i, h := range t.Header {
		lower := strings.ToLower(h)
		for _, kw := range contentKeywords {
			if strings.Contains(lower, kw) {
				indices = append(indices, i)
				break
			}
		}
	}
	if len(indices) == 0 {
		for i, h := range t.Header {
			if !strings.EqualFold(h, "id") {
				indices = append(indices, i)
			}
		}
	}

	used := make([]string, len(indices))
	for i, idx := range indices {
		used[i] = t.Header[idx]
	}

	texts := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		var parts []string
		for _, idx := range indices {
			if v := strings.TrimSpace(row[idx]); v != "" {
				parts = append(parts, row[idx])
			}
		}
		texts[i] = strings.Join(parts, "\n\n")
	}
	return texts, used
}

// Sample returns a table with at most n randomly chosen rows. The seed makes
// debug runs reproducible.
func (t *Table) Sample(n int, seed int64) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(t.Rows))[:n]
	rows := make([][]string, n)
	for i, p := range perm {
		rows[i] = t.Rows[p]
	}
	return &Table{Header: t.Header, Rows: rows}
}

// WriteCSV writes the table to path with an appended column holding the
// anonymized content, one value per row.
func WriteCSV(path string, t *Table, columnName string, anonymized []string) error {
	if len(anonymized) != len(t.Rows) {
		return fmt.Errorf("anonymized values (%d) do not match rows (%d)", len(anonymized), len(t.Rows))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append(append([]string(nil), t.Header...), columnName)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range t.Rows {
		if err := w.Write(append(append([]string(nil), row...), anonymized[i])); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing output file: %w", err)
	}
	return nil
}
