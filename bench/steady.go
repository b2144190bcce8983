package bench

import (
	"fmt"
	"io"
	"math"
	"sort"
)

// MedianStats picks the median run by QPS from repeated runs of one query.
func MedianStats(runs []BenchStats) BenchStats {
	if len(runs) == 1 {
		return runs[0]
	}
	sorted := make([]BenchStats, len(runs))
	copy(sorted, runs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].QPS < sorted[j].QPS })
	return sorted[len(sorted)/2]
}

// SteadyState checks if QPS variance across runs is within tolerance.
func SteadyState(runs []BenchStats, tolerance float64) (bool, float64) {
	if len(runs) < 2 {
		return true, 0
	}
	var sum float64
	for _, r := range runs {
		sum += r.QPS
	}
	mean := sum / float64(len(runs))
	if mean == 0 {
		return false, 0
	}

	var maxDev float64
	for _, r := range runs {
		dev := math.Abs(r.QPS-mean) / mean
		if dev > maxDev {
			maxDev = dev
		}
	}
	return maxDev <= tolerance, maxDev
}

// PrintRuns prints every run, the steady-state verdict and the median run.
func PrintRuns(w io.Writer, runs []BenchStats, tolerance float64) BenchStats {
	median := MedianStats(runs)
	steady, maxDev := SteadyState(runs, tolerance)

	fmt.Fprintf(w, "\n╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║  ALL RUNS SUMMARY                                        ║\n")
	fmt.Fprintf(w, "╠═════╦══════════╦══════════╦══════════╦═══════════════════╣\n")
	fmt.Fprintf(w, "║ Run ║   QPS    ║   p50    ║   p95    ║ Queries           ║\n")
	fmt.Fprintf(w, "╠═════╬══════════╬══════════╬══════════╬═══════════════════╣\n")
	for i, r := range runs {
		marker := "  "
		if r.Label == median.Label && r.QPS == median.QPS {
			marker = "→ "
		}
		fmt.Fprintf(w, "║ %s%d  ║ %8.1f ║ %8s ║ %8s ║ %-17d ║\n",
			marker, i+1, r.QPS, FmtDur(r.IntervalP50), FmtDur(r.IntervalP95), r.Total)
	}
	fmt.Fprintf(w, "╚═════╩══════════╩══════════╩══════════╩═══════════════════╝\n")
	fmt.Fprintln(w, "  → = median (reported)")

	fmt.Fprintf(w, "\n── Steady-State Check ──\n")
	fmt.Fprintf(w, "  Max QPS deviation: %.1f%%\n", maxDev*100)
	if steady {
		fmt.Fprintf(w, "  ✅ PASSED (within ±%.0f%%)\n", tolerance*100)
	} else {
		fmt.Fprintf(w, "  ⚠️  FAILED (%.1f%% > %.0f%%); results still reported as median\n", maxDev*100, tolerance*100)
	}
	return median
}
