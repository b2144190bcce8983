package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRunIsNoop(t *testing.T) {
	var r *Run
	assert.NotPanics(t, func() {
		r.QueryDone()
		r.Connected()
		r.WorkerStarted()
		r.WorkerStopped(1, 2)
		r.BufferWritten(10)
	})
}

func TestRunCounters(t *testing.T) {
	r := NewRun("abc")
	r.WorkerStarted()
	r.WorkerStarted()
	r.Connected()
	r.QueryDone()
	r.QueryDone()
	r.WorkerStopped(10, 3)
	r.BufferWritten(100)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.Queries))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Connects))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.Workers))
	assert.Equal(t, float64(10), testutil.ToFloat64(r.Rows))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.SuspiciousFields))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.BuffersWritten))
	assert.Equal(t, float64(100), testutil.ToFloat64(r.BytesWritten))
}

func TestRunsAreIndependent(t *testing.T) {
	a := NewRun("a")
	b := NewRun("b")
	a.QueryDone()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.Queries))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.Queries))
}

func TestServe(t *testing.T) {
	r := NewRun("served")
	r.QueryDone()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := r.Serve(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `clientbench_queries_total{run="served"} 1`)
}
