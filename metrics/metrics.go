package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "clientbench"

// Run holds the counters of a single benchmark run in its own registry, so
// several runs can live in one process. A nil *Run discards everything.
type Run struct {
	Registry *prometheus.Registry

	Queries          prometheus.Counter
	Rows             prometheus.Counter
	SuspiciousFields prometheus.Counter
	Connects         prometheus.Counter
	Workers          prometheus.Gauge
	BuffersWritten   prometheus.Counter
	BytesWritten     prometheus.Counter
}

func NewRun(runID string) *Run {
	labels := prometheus.Labels{"run": runID}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	r := &Run{
		Registry:         prometheus.NewRegistry(),
		Queries:          counter("queries_total", "Completed query executions."),
		Rows:             counter("rows_total", "Rows fetched."),
		SuspiciousFields: counter("suspicious_fields_total", "Fields flagged by the column checks."),
		Connects:         counter("connects_total", "Connections opened by workers."),
		BuffersWritten:   counter("output_buffers_written_total", "Output buffers written to the sink."),
		BytesWritten:     counter("output_bytes_written_total", "Bytes written to the sink."),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "workers",
			Help:        "Workers currently running.",
			ConstLabels: labels,
		}),
	}
	r.Registry.MustRegister(
		r.Queries, r.Rows, r.SuspiciousFields,
		r.Connects, r.Workers, r.BuffersWritten, r.BytesWritten,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Run) QueryDone() {
	if r == nil {
		return
	}
	r.Queries.Inc()
}

func (r *Run) Connected() {
	if r == nil {
		return
	}
	r.Connects.Inc()
}

func (r *Run) WorkerStarted() {
	if r == nil {
		return
	}
	r.Workers.Inc()
}

func (r *Run) WorkerStopped(rows, suspicious int64) {
	if r == nil {
		return
	}
	r.Workers.Dec()
	r.Rows.Add(float64(rows))
	r.SuspiciousFields.Add(float64(suspicious))
}

func (r *Run) BufferWritten(n int) {
	if r == nil {
		return
	}
	r.BuffersWritten.Inc()
	r.BytesWritten.Add(float64(n))
}

// Serve exposes the registry on addr at /metrics until ctx is done.
func (r *Run) Serve(ctx context.Context, addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Serving metrics on http://%s/metrics", lis.Addr())
	return lis.Addr(), nil
}
