package bench

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTimestamps(t *testing.T) {
	ts, err := ReadTimestamps(strings.NewReader("100\n300\n\n200\n"))
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 300, 200}, ts)

	_, err = ReadTimestamps(strings.NewReader("100\nabc\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestComputeStats(t *testing.T) {
	second := int64(time.Second)
	stats := ComputeStats("q1", []int64{4 * second, 1 * second, 2 * second, 3 * second})

	assert.Equal(t, "q1", stats.Label)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 4*time.Second, stats.Duration)
	assert.Equal(t, time.Second, stats.Mean)
	assert.InDelta(t, 1.0, stats.QPS, 1e-9)
	assert.Equal(t, time.Second, stats.IntervalMin)
	assert.Equal(t, time.Second, stats.IntervalMax)
	assert.Equal(t, time.Second, stats.IntervalP99)
}

func TestComputeStats_Intervals(t *testing.T) {
	stats := ComputeStats("q", []int64{10, 30, 60, 100})
	assert.Equal(t, time.Duration(10), stats.IntervalMin)
	assert.Equal(t, time.Duration(40), stats.IntervalMax)
	assert.Equal(t, time.Duration(25), stats.IntervalAvg)
	assert.Equal(t, time.Duration(20), stats.IntervalP50)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats("empty", nil)
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.QPS)
}

func TestPrintCSV(t *testing.T) {
	var buf bytes.Buffer
	PrintCSV(&buf, []BenchStats{
		ComputeStats("q1", []int64{int64(time.Second), int64(2 * time.Second)}),
		ComputeStats("q2", nil),
	})
	assert.Equal(t,
		"\"name\",\"count\",\"total_seconds\",\"mean_seconds\"\n"+
			"\"q1\",2,2,1\n"+
			"\"q2\",0,,\n",
		buf.String())
}

func TestFmtDur(t *testing.T) {
	assert.Equal(t, "250µs", FmtDur(250*time.Microsecond))
	assert.Equal(t, "1.50ms", FmtDur(1500*time.Microsecond))
}
