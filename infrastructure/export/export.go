// Package export renders the full phrase collection as a downloadable file.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/furon-kuina/semleaf/domain/phrase"
	"github.com/furon-kuina/semleaf/infrastructure/api/v1/dto"
)

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Separators used to flatten list columns in CSV.
const (
	MeaningSeparator = " | "
	TagSeparator     = ", "
)

var csvHeader = []string{"id", "phrase", "meanings", "source", "tags", "memo", "created_at", "updated_at"}

// ParseFormat maps a query value to a Format. Anything other than "csv" is JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatCSV)) {
		return FormatCSV
	}
	return FormatJSON
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Filename returns the suggested attachment name.
func (f Format) Filename() string {
	return "semleaf-export." + string(f)
}

// Write renders phrases in format f.
func Write(w io.Writer, f Format, phrases []phrase.Phrase) error {
	if f == FormatCSV {
		return CSV(w, phrases)
	}
	return JSON(w, phrases)
}

// JSON writes phrases as an indented JSON array.
func JSON(w io.Writer, phrases []phrase.Phrase) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto.FromDomainList(phrases)); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// CSV writes one row per phrase under a fixed header. Meanings and tags are
// joined into single cells; absent source and memo are empty cells.
func CSV(w io.Writer, phrases []phrase.Phrase) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range phrases {
		record := []string{
			p.ID(),
			p.Text(),
			strings.Join(p.MeaningTexts(), MeaningSeparator),
			p.Source(),
			strings.Join(p.Tags(), TagSeparator),
			p.Memo(),
			p.CreatedAt().UTC().Format(time.RFC3339Nano),
			p.UpdatedAt().UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", p.ID(), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
