package repo

import (
	"encoding/json"
	"fmt"

	"schemagen/internal/domain"
	"schemagen/pkg/zip"
)

// ArchiveEntries renders each row as an indented JSON file named after its id.
func ArchiveEntries(rows []domain.StoredResult) ([]zip.Entry, error) {
	entries := make([]zip.Entry, 0, len(rows))
	for _, row := range rows {
		data, err := json.MarshalIndent(row, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode result %d: %w", row.ID, err)
		}
		entries = append(entries, zip.Entry{
			Name:     fmt.Sprintf("result-%d.json", row.ID),
			Modified: row.QueryTime,
			Data:     data,
		})
	}
	return entries, nil
}
