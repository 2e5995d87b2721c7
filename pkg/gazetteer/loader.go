package gazetteer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/civiclens/civiclens-go/pkg/models"
)

// expected CSV header of the prepared gazetteer file. Bulk ETL from the raw
// census workbooks happens outside this process; we only consume its output.
var csvColumns = []string{"id", "level", "parent_id", "name_hindi", "name_english", "name_translit"}

// LoadCSV reads gazetteer entries from the prepared reference CSV
func LoadCSV(path string) ([]models.GazetteerEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gazetteer file: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV parses gazetteer source data from a reader
func ParseCSV(r io.Reader) ([]models.GazetteerEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer header: %w", err)
	}
	for i, col := range csvColumns {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return nil, fmt.Errorf("unexpected gazetteer column %d: got %q, want %q", i, header[i], col)
		}
	}

	var entries []models.GazetteerEntry
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read gazetteer line %d: %w", line, err)
		}

		entry, err := entryFromRecord(record)
		if err != nil {
			return nil, fmt.Errorf("invalid gazetteer line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("gazetteer source contained no entries")
	}
	return entries, nil
}

func entryFromRecord(record []string) (models.GazetteerEntry, error) {
	id := strings.TrimSpace(record[0])
	if id == "" {
		return models.GazetteerEntry{}, fmt.Errorf("empty entry id")
	}

	level, err := models.ParseLevel(strings.TrimSpace(record[1]))
	if err != nil {
		return models.GazetteerEntry{}, err
	}

	entry := models.GazetteerEntry{
		ID:           id,
		Level:        level,
		ParentID:     strings.TrimSpace(record[2]),
		NameHindi:    strings.TrimSpace(record[3]),
		NameEnglish:  strings.TrimSpace(record[4]),
		NameTranslit: strings.TrimSpace(record[5]),
	}
	entry.CanonicalName = entry.NameHindi

	// every variant form must be present; a silent gap here would make the
	// round-trip law unverifiable
	for _, form := range entry.VariantForms() {
		if form == "" {
			return models.GazetteerEntry{}, fmt.Errorf("entry %s has an empty variant form", id)
		}
	}
	return entry, nil
}
