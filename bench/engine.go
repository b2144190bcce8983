package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"clientbench/metrics"
	"clientbench/output"
)

// Plan is a benchmark ready to run: the query plus the check to apply to
// each of its result columns. The column table is read-only once built and
// shared by all workers.
type Plan struct {
	Benchmark *Benchmark
	Kinds     []ColumnKind

	backend Backend
}

// Prepare runs the query once on a throwaway connection to learn the result
// columns and pick a ColumnKind for each.
func Prepare(ctx context.Context, backend Backend, b *Benchmark) (*Plan, error) {
	conn, err := backend.Connect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	defer closeConn(ctx, conn)

	h, err := conn.Query(ctx, b.Text)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer h.Close()

	ncols := h.ColumnCount()
	if ncols < 1 {
		if err := h.Err(); err != nil {
			return nil, errors.Wrap(err, "query")
		}
		return nil, errors.New("query did not return any columns")
	}

	kinds := make([]ColumnKind, ncols)
	for i := range kinds {
		kinds[i], err = KindForType(b.AllText, h.ColumnType(i))
		if err != nil {
			return nil, errors.Wrapf(err, "column %d", i)
		}
	}
	return &Plan{Benchmark: b, Kinds: kinds, backend: backend}, nil
}

// Run starts the workers and waits until every one of them has seen the
// deadline pass. Workers only look at the clock after a complete query
// execution, so a run lasts at least params.Duration and at most one query
// longer. The first error from any worker ends the whole run.
func (p *Plan) Run(ctx context.Context, out *output.Pipeline, params BenchParams) (Result, error) {
	parallel := p.Benchmark.Parallel
	if params.Parallel > 0 {
		parallel = params.Parallel
	}
	deadline := params.Duration.Nanoseconds()
	logger := params.Log
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	workers := make([]*worker, parallel)
	for i := range workers {
		workers[i] = &worker{
			id:      i,
			plan:    p,
			slot:    out.NewSlot(),
			out:     out,
			metrics: params.Metrics,
			log:     logger.WithField("worker", i),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	clock := StartClock()
	for _, w := range workers {
		g.Go(func() error {
			return w.run(gctx, clock, deadline)
		})
	}
	err := g.Wait()
	elapsed := time.Duration(clock.Elapsed())

	res := Result{
		Label:    fmt.Sprintf("%s, %d worker(s)", p.backend.Name(), parallel),
		Parallel: parallel,
		Elapsed:  elapsed,
	}
	for _, w := range workers {
		res.Queries += w.queries
		res.Rows += w.rows
		res.Suspicious += w.suspicious
	}
	if elapsed > 0 {
		res.QPS = float64(res.Queries) / elapsed.Seconds()
	}
	return res, err
}

type worker struct {
	id      int
	plan    *Plan
	slot    *output.Slot
	out     *output.Pipeline
	metrics *metrics.Run
	log     *log.Entry

	conn   Conn
	handle Handle

	queries    int64
	rows       int64
	suspicious int64
}

func (w *worker) run(ctx context.Context, clock Clock, deadline int64) (err error) {
	w.metrics.WorkerStarted()
	defer func() {
		w.metrics.WorkerStopped(w.rows, w.suspicious)
		if cerr := w.disconnect(context.WithoutCancel(ctx)); err == nil {
			err = cerr
		}
	}()

	b := w.plan.Benchmark
	kinds := w.plan.Kinds
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.Reconnect {
			if err := w.disconnect(ctx); err != nil {
				return err
			}
		}

		h, err := w.execute(ctx)
		if err != nil {
			return err
		}

		var rows int64
		for h.Next() {
			rows++
			for i, kind := range kinds {
				field, present := h.Field(i)
				suspicious, err := Classify(kind, field, present)
				if err != nil {
					w.log.WithField("column", i).Warn(err)
				}
				if suspicious {
					w.suspicious++
				}
			}
		}
		if err := h.Err(); err != nil {
			return errors.Wrapf(err, "worker %d: fetch", w.id)
		}
		w.rows += rows
		if b.Expected >= 0 && rows != b.Expected {
			return errors.Errorf("worker %d: expected row count %d, got %d", w.id, b.Expected, rows)
		}

		now := clock.Elapsed()
		if err := w.slot.Write(now); err != nil {
			return errors.Wrapf(err, "worker %d", w.id)
		}
		w.queries++
		w.metrics.QueryDone()

		if err := w.out.Err(); err != nil {
			return err
		}
		if now >= deadline {
			break
		}
	}

	w.log.Debugf("Deadline reached after %d queries", w.queries)
	return w.slot.Flush()
}

func (w *worker) execute(ctx context.Context) (Handle, error) {
	if w.conn == nil {
		conn, err := w.plan.backend.Connect(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "worker %d: connect", w.id)
		}
		w.conn = conn
		w.metrics.Connected()
	}

	b := w.plan.Benchmark
	switch {
	case b.Prepare:
		if w.handle == nil {
			h, err := w.conn.Prepare(ctx, b.Text)
			if err != nil {
				return nil, errors.Wrapf(err, "worker %d: prepare", w.id)
			}
			w.handle = h
		}
		if err := w.handle.Execute(ctx); err != nil {
			return nil, errors.Wrapf(err, "worker %d: execute", w.id)
		}
	case w.handle != nil:
		if err := w.handle.Requery(ctx, b.Text); err != nil {
			return nil, errors.Wrapf(err, "worker %d: query", w.id)
		}
	default:
		h, err := w.conn.Query(ctx, b.Text)
		if err != nil {
			return nil, errors.Wrapf(err, "worker %d: query", w.id)
		}
		w.handle = h
	}
	return w.handle, nil
}

func (w *worker) disconnect(ctx context.Context) error {
	if w.handle != nil {
		if err := w.handle.Close(); err != nil {
			return errors.Wrapf(err, "worker %d: close handle", w.id)
		}
		w.handle = nil
	}
	if w.conn != nil {
		if err := w.conn.Close(ctx); err != nil {
			return errors.Wrapf(err, "worker %d: disconnect", w.id)
		}
		w.conn = nil
	}
	return nil
}

func closeConn(ctx context.Context, conn Conn) {
	if err := conn.Close(ctx); err != nil {
		log.WithError(err).Warn("Closing connection failed")
	}
}
