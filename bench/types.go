package bench

import (
	"time"

	log "github.com/sirupsen/logrus"

	"clientbench/metrics"
)

type ConnConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	DSN            string // overrides the fields above when set
	ConnectTimeout time.Duration
}

// Benchmark is the query under test plus the settings read from its
// @KEYWORD@ directives. It is not modified after parsing.
type Benchmark struct {
	Text      string
	Prepare   bool
	Reconnect bool
	Parallel  int
	AllText   bool
	Expected  int64 // -1 = unset
}

type BenchParams struct {
	Duration time.Duration
	Parallel int          // 0 = use the benchmark's @PARALLEL@ setting
	Metrics  *metrics.Run // optional
	Log      *log.Entry   // optional, defaults to the standard logger
}

// Result describes one completed run.
type Result struct {
	Label      string
	Parallel   int
	Queries    int64
	Rows       int64
	Suspicious int64 // fields flagged by the column checks
	Elapsed    time.Duration
	QPS        float64
}

// BenchStats summarizes a timestamp file written by a run.
type BenchStats struct {
	Label       string
	Total       int
	Duration    time.Duration // largest timestamp
	Mean        time.Duration // Duration / Total
	QPS         float64
	IntervalAvg time.Duration
	IntervalMin time.Duration
	IntervalMax time.Duration
	IntervalP50 time.Duration
	IntervalP75 time.Duration
	IntervalP90 time.Duration
	IntervalP95 time.Duration
	IntervalP99 time.Duration
}
