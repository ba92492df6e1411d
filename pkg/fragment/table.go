package fragment

import "sort"

// FrequencyTable counts rows per start year
type FrequencyTable map[int]int

// YearCount is one (year, count) pair of a FrequencyTable
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Add counts one row for year
func (t FrequencyTable) Add(year int) {
	t[year]++
}

// Total returns the number of rows counted
func (t FrequencyTable) Total() int {
	total := 0
	for _, c := range t {
		total += c
	}
	return total
}

// Years returns the distinct years in ascending order
func (t FrequencyTable) Years() []int {
	years := make([]int, 0, len(t))
	for y := range t {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Pairs returns (year, count) pairs in ascending year order
func (t FrequencyTable) Pairs() []YearCount {
	years := t.Years()
	pairs := make([]YearCount, len(years))
	for i, y := range years {
		pairs[i] = YearCount{Year: y, Count: t[y]}
	}
	return pairs
}

// Median returns the lower weighted median of the table: the smallest year y
// whose cumulative count, doubled, reaches the total. ok is false for an empty
// table.
func Median(t FrequencyTable) (year int, ok bool) {
	total := t.Total()
	if total == 0 {
		return 0, false
	}

	cumulative := 0
	for _, y := range t.Years() {
		cumulative += t[y]
		if cumulative*2 >= total {
			return y, true
		}
	}
	// unreachable: the last year always satisfies cumulative == total
	return 0, false
}
