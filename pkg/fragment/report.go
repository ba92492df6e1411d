package fragment

import (
	"bufio"
	"fmt"
	"io"
)

// WriteReport writes the human-readable year listing followed by the
// fragment year and the two row counts.
func WriteReport(w io.Writer, s *Stats) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "Year : Count")
	for _, p := range s.Years() {
		fmt.Fprintf(bw, "%d : %d\n", p.Year, p.Count)
	}

	median := "None"
	if s.MedianYear != nil {
		median = fmt.Sprint(*s.MedianYear)
	}
	fmt.Fprintf(bw, "\nFRAGMENT_YEAR = %s\n", median)
	fmt.Fprintf(bw, "Total rows considered: %d\n", s.TotalConsidered)
	fmt.Fprintf(bw, "Total valid startYear rows: %d\n", s.TotalValid)

	return bw.Flush()
}
