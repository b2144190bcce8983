package bench

import (
	"fmt"
	"io"
	"time"
)

func PrintResult(w io.Writer, r Result) {
	fmt.Fprintf(w, "\n┌─────────────────────────────────────────┐\n")
	fmt.Fprintf(w, "│  %-39s│\n", r.Label)
	fmt.Fprintf(w, "├─────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│  Workers:      %-24d│\n", r.Parallel)
	fmt.Fprintf(w, "│  Queries:      %-24d│\n", r.Queries)
	fmt.Fprintf(w, "│  Rows:         %-24d│\n", r.Rows)
	fmt.Fprintf(w, "│  Duration:     %-24s│\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "│  QPS:          %-24.1f│\n", r.QPS)
	fmt.Fprintf(w, "├─────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│  Suspicious:   %-24d│\n", r.Suspicious)
	fmt.Fprintf(w, "└─────────────────────────────────────────┘\n")
}

func PrintStats(w io.Writer, s BenchStats) {
	fmt.Fprintf(w, "\n┌─────────────────────────────────────────┐\n")
	fmt.Fprintf(w, "│  %-39s│\n", s.Label)
	fmt.Fprintf(w, "├─────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│  Queries:      %-24d│\n", s.Total)
	fmt.Fprintf(w, "│  Duration:     %-24s│\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "│  Mean:         %-24s│\n", FmtDur(s.Mean))
	fmt.Fprintf(w, "│  QPS:          %-24.1f│\n", s.QPS)
	fmt.Fprintf(w, "├─────────────────────────────────────────┤\n")
	fmt.Fprintf(w, "│  Interval avg: %-24s│\n", FmtDur(s.IntervalAvg))
	fmt.Fprintf(w, "│  Interval min: %-24s│\n", FmtDur(s.IntervalMin))
	fmt.Fprintf(w, "│  Interval max: %-24s│\n", FmtDur(s.IntervalMax))
	fmt.Fprintf(w, "│  Interval p50: %-24s│\n", FmtDur(s.IntervalP50))
	fmt.Fprintf(w, "│  Interval p75: %-24s│\n", FmtDur(s.IntervalP75))
	fmt.Fprintf(w, "│  Interval p90: %-24s│\n", FmtDur(s.IntervalP90))
	fmt.Fprintf(w, "│  Interval p95: %-24s│\n", FmtDur(s.IntervalP95))
	fmt.Fprintf(w, "│  Interval p99: %-24s│\n", FmtDur(s.IntervalP99))
	fmt.Fprintf(w, "└─────────────────────────────────────────┘\n")
}

// PrintCSV writes one line per run in the format of the summary.txt files
// produced by the benchmark driver.
func PrintCSV(w io.Writer, stats []BenchStats) {
	fmt.Fprintln(w, `"name","count","total_seconds","mean_seconds"`)
	for _, s := range stats {
		if s.Total == 0 {
			fmt.Fprintf(w, "%q,0,,\n", s.Label)
			continue
		}
		fmt.Fprintf(w, "%q,%d,%g,%g\n", s.Label, s.Total, s.Duration.Seconds(), s.Mean.Seconds())
	}
}

func FmtDur(d time.Duration) string {
	us := float64(d.Microseconds())
	if us < 1000 {
		return fmt.Sprintf("%.0fµs", us)
	}
	return fmt.Sprintf("%.2fms", us/1000)
}
