package storage

import (
	"sort"
	"strings"

	"github.com/nicktill/titlefrag/pkg/title"
)

// Matches reports whether row contains query in any column.
// Matching is case-insensitive; numeric columns match on their decimal text.
// An empty query matches everything.
func Matches(row title.Row, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, v := range []string{row.TConst, row.TitleType, row.PrimaryTitle} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	if row.StartYear.Valid && strings.Contains(row.StartYear.String(), q) {
		return true
	}
	if row.RuntimeMinutes.Valid && strings.Contains(row.RuntimeMinutes.String(), q) {
		return true
	}
	return false
}

// SortForSearch orders rows by startYear descending (absent last), then tconst
func SortForSearch(rows []title.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].StartYear, rows[j].StartYear
		if a.Valid != b.Valid {
			return a.Valid
		}
		if a.Valid && a.Int != b.Int {
			return a.Int > b.Int
		}
		return rows[i].TConst < rows[j].TConst
	})
}

// Search filters, orders and limits rows the same way for every in-process backend
func Search(rows []title.Row, req QueryRequest) []title.Row {
	var results []title.Row
	for _, r := range rows {
		if Matches(r, req.Query) {
			results = append(results, r)
		}
	}
	SortForSearch(results)

	if limit := req.EffectiveLimit(); len(results) > limit {
		results = results[:limit]
	}
	return results
}
