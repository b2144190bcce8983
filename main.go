package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"clientbench/bench"
	"clientbench/metrics"
	"clientbench/output"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		logFatal(err)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clientbench",
		Short: "Measure query throughput of a database client connection.",
		Long: `clientbench runs one query over and over from a number of workers and
writes the completion time of every execution, in nanoseconds since the start
of the run, to the output, one per line.

The query file may contain directives such as @PARALLEL=4@, @PREPARE@,
@RECONNECT@, @ALL_TEXT@ and @EXPECTED=N@. They are sent to the server along
with the rest of the query, so put them in a comment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addConfigFlags(cmd)

	cmd.AddCommand(
		runCmd(),
		infoCmd(),
		summarizeCmd(),
	)
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run QUERY_FILE DURATION_SECONDS",
		Short: "Run a benchmark and write completion timestamps.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			duration, err := parseDuration(args[1])
			if err != nil {
				return err
			}
			parallel, err := cmd.Flags().GetInt("parallel")
			if err != nil {
				return err
			}
			return runBenchmark(cmd.Context(), cfg, args[0], duration, parallel)
		},
	}
	cmd.Flags().Int("parallel", 0, "Number of workers, overrides @PARALLEL@")
	cmd.Flags().String("output", "-", "Output file for timestamps, - for stdout")
	cmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address during the run")
	return cmd
}

// parseDuration reads DURATION_SECONDS, a non-negative finite number of
// seconds.
func parseDuration(s string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, errors.Errorf("invalid duration '%s'", s)
	}
	if seconds > float64(math.MaxInt64)/float64(time.Second) {
		return 0, errors.Errorf("duration '%s' out of range", s)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func runBenchmark(ctx context.Context, cfg Config, queryFile string, duration time.Duration, parallel int) error {
	b, err := bench.ReadBenchmark(queryFile)
	if err != nil {
		return err
	}
	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}

	workers := b.Parallel
	if parallel > 0 {
		workers = parallel
	}

	runID := uuid.New().String()
	logger := log.WithField("run", runID)
	logger.WithFields(log.Fields{
		"driver":    backend.Name(),
		"query":     queryFile,
		"prepare":   b.Prepare,
		"reconnect": b.Reconnect,
		"parallel":  workers,
		"all_text":  b.AllText,
		"expected":  b.Expected,
	}).Info("Preparing benchmark")

	plan, err := bench.Prepare(ctx, backend, b)
	if err != nil {
		return err
	}

	m := metrics.NewRun(runID)
	if cfg.MetricsAddr != "" {
		serveCtx, stop := context.WithCancel(ctx)
		defer stop()
		if _, err := m.Serve(serveCtx, cfg.MetricsAddr); err != nil {
			return err
		}
	}

	sink, closeSink, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	out := output.New(sink, output.WithMetrics(m))

	logger.WithField("duration", duration).Info("Running benchmark")
	res, runErr := plan.Run(ctx, out, bench.BenchParams{
		Duration: duration,
		Parallel: parallel,
		Metrics:  m,
		Log:      logger,
	})
	outErr := out.Close()
	sinkErr := closeSink()
	switch {
	case runErr != nil:
		return runErr
	case outErr != nil:
		return outErr
	case sinkErr != nil:
		return sinkErr
	}

	bench.PrintResult(os.Stderr, res)
	logger.WithFields(log.Fields{
		"queries":    res.Queries,
		"suspicious": res.Suspicious,
	}).Info("Benchmark finished")
	return nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create output file")
	}
	return f, func() error {
		return errors.Wrap(f.Close(), "close output file")
	}, nil
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print client, clock and server information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			return showInfo(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}

func showInfo(ctx context.Context, w io.Writer, cfg Config) error {
	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "Driver: %s\n", cfg.Driver)
	fmt.Fprintf(w, "Clock resolution nanos: %d\n", bench.Resolution().Nanoseconds())

	if cfg.Database == "" && cfg.DSN == "" {
		return nil
	}
	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	conn, err := backend.Connect(ctx)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer conn.Close(ctx)

	version, err := conn.ServerVersion(ctx)
	if err != nil {
		return errors.Wrap(err, "server version")
	}
	fmt.Fprintf(w, "Server version: %s\n", version)
	return nil
}

func summarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize FILE...",
		Short: "Summarize timestamp files written by run.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(cmd); err != nil {
				return err
			}
			asCSV, err := cmd.Flags().GetBool("csv")
			if err != nil {
				return err
			}
			runs, err := cmd.Flags().GetBool("runs")
			if err != nil {
				return err
			}
			if runs {
				return summarizeRuns(cmd.OutOrStdout(), args)
			}
			return summarize(cmd.OutOrStdout(), args, asCSV)
		},
	}
	cmd.Flags().Bool("csv", false, "Print name,count,total_seconds,mean_seconds CSV")
	cmd.Flags().Bool("runs", false, "Treat the files as repeated runs of one query and report the median run")
	return cmd
}

// steadyTolerance is the largest QPS deviation from the mean across repeated
// runs that still counts as steady state.
const steadyTolerance = 0.05

func summarize(w io.Writer, files []string, asCSV bool) error {
	all, err := loadStats(files)
	if err != nil {
		return err
	}

	if asCSV {
		bench.PrintCSV(w, all)
		return nil
	}
	for _, s := range all {
		bench.PrintStats(w, s)
	}
	return nil
}

func summarizeRuns(w io.Writer, files []string) error {
	runs, err := loadStats(files)
	if err != nil {
		return err
	}
	median := bench.PrintRuns(w, runs, steadyTolerance)
	bench.PrintStats(w, median)
	return nil
}

func loadStats(files []string) ([]bench.BenchStats, error) {
	var all []bench.BenchStats
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open timestamps")
		}
		timestamps, err := bench.ReadTimestamps(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		all = append(all, bench.ComputeStats(statsLabel(path), timestamps))
	}
	return all, nil
}

// statsLabel names a run after its timestamp file, without the extension.
func statsLabel(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func setup(cmd *cobra.Command) (Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return Config{}, err
	}
	if err := configureLogging(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
