package bench

import (
	"bufio"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ReadTimestamps parses one decimal nanosecond timestamp per line. Blank
// lines are skipped.
func ReadTimestamps(r io.Reader) ([]int64, error) {
	var timestamps []int64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		ts, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		timestamps = append(timestamps, ts)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read timestamps")
	}
	return timestamps, nil
}

// ComputeStats summarizes the timestamps of one run. Intervals are the gaps
// between consecutive completions across all workers, after sorting.
func ComputeStats(label string, timestamps []int64) BenchStats {
	stats := BenchStats{Label: label, Total: len(timestamps)}
	if len(timestamps) == 0 {
		return stats
	}

	sorted := make([]int64, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	stats.Duration = time.Duration(sorted[len(sorted)-1])
	stats.Mean = stats.Duration / time.Duration(len(sorted))
	if stats.Duration > 0 {
		stats.QPS = float64(len(sorted)) / stats.Duration.Seconds()
	}

	intervals := make([]time.Duration, len(sorted))
	prev := int64(0)
	for i, ts := range sorted {
		intervals[i] = time.Duration(ts - prev)
		prev = ts
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i] < intervals[j] })

	var sum time.Duration
	for _, d := range intervals {
		sum += d
	}

	stats.IntervalAvg = sum / time.Duration(len(intervals))
	stats.IntervalMin = intervals[0]
	stats.IntervalMax = intervals[len(intervals)-1]
	stats.IntervalP50 = pct(intervals, 50)
	stats.IntervalP75 = pct(intervals, 75)
	stats.IntervalP90 = pct(intervals, 90)
	stats.IntervalP95 = pct(intervals, 95)
	stats.IntervalP99 = pct(intervals, 99)

	return stats
}

func pct(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
