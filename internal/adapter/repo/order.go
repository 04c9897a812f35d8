package repo

import (
	"sort"

	"schemagen/internal/domain"
)

// sortNewestFirst orders by query time descending; rows written within the
// same clock tick fall back to descending id.
func sortNewestFirst(rows []domain.StoredResult) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].QueryTime.Equal(rows[j].QueryTime) {
			return rows[i].QueryTime.After(rows[j].QueryTime)
		}
		return rows[i].ID > rows[j].ID
	})
}
