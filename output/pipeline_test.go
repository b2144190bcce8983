package output

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientbench/metrics"
)

// shortWriter accepts at most max bytes per call.
type shortWriter struct {
	buf bytes.Buffer
	max int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		p = p[:w.max]
	}
	return w.buf.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

type stuckWriter struct{}

func (stuckWriter) Write(p []byte) (int, error) {
	return 0, nil
}

func TestSlot_WritesRecordsInOrder(t *testing.T) {
	var sink bytes.Buffer
	p := New(&sink)
	slot := p.NewSlot()

	var want strings.Builder
	for i := int64(0); i < 50000; i++ {
		ts := i * 1234567
		require.NoError(t, slot.Write(ts))
		want.WriteString(strconv.FormatInt(ts, 10))
		want.WriteByte('\n')
	}
	require.NoError(t, slot.Flush())
	require.NoError(t, p.Close())

	assert.Equal(t, want.String(), sink.String())
}

func TestSlot_HandsOffFullBuffers(t *testing.T) {
	var sink bytes.Buffer
	m := metrics.NewRun("test")
	p := New(&sink, WithMetrics(m))
	slot := p.NewSlot()

	record := strconv.FormatInt(1<<62, 10) + "\n"
	n := 3 * BufferSize / len(record)
	for i := 0; i < n; i++ {
		require.NoError(t, slot.Write(1<<62))
	}
	require.NoError(t, slot.Flush())
	require.NoError(t, p.Close())

	assert.Equal(t, strings.Repeat(record, n), sink.String())
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.BuffersWritten), float64(3))
	assert.Equal(t, float64(sink.Len()), testutil.ToFloat64(m.BytesWritten))
}

func TestPipeline_ConcurrentProducers(t *testing.T) {
	var sink bytes.Buffer
	p := New(&sink)

	const producers = 8
	const records = 20000
	var wg sync.WaitGroup
	for w := 0; w < producers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			slot := p.NewSlot()
			for i := 0; i < records; i++ {
				assert.NoError(t, slot.Write(int64(w*records+i)))
			}
			assert.NoError(t, slot.Flush())
		}(w)
	}
	wg.Wait()
	require.NoError(t, p.Close())

	lines := strings.Split(strings.TrimSuffix(sink.String(), "\n"), "\n")
	require.Len(t, lines, producers*records)

	// Records from one producer keep their order; nothing is lost or repeated.
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	seen := make(map[int]bool, len(lines))
	for _, line := range lines {
		v, err := strconv.Atoi(line)
		require.NoError(t, err)
		require.False(t, seen[v], "duplicate record %d", v)
		seen[v] = true

		w, i := v/records, v%records
		require.Greater(t, i, last[w])
		last[w] = i
	}
}

func TestSlot_FlushEmpty(t *testing.T) {
	var sink bytes.Buffer
	p := New(&sink)
	slot := p.NewSlot()

	require.NoError(t, slot.Flush())
	require.NoError(t, slot.Flush())
	require.NoError(t, p.Close())
	assert.Zero(t, sink.Len())
}

func TestPipeline_ToleratesShortWrites(t *testing.T) {
	sink := &shortWriter{max: 7}
	p := New(sink)
	slot := p.NewSlot()
	for i := int64(0); i < 1000; i++ {
		require.NoError(t, slot.Write(i))
	}
	require.NoError(t, slot.Flush())
	require.NoError(t, p.Close())

	var want strings.Builder
	for i := 0; i < 1000; i++ {
		want.WriteString(strconv.Itoa(i) + "\n")
	}
	assert.Equal(t, want.String(), sink.buf.String())
}

func TestPipeline_SinkError(t *testing.T) {
	p := New(failingWriter{})
	slot := p.NewSlot()
	require.NoError(t, slot.Write(1))
	require.NoError(t, slot.Flush())

	err := p.Close()
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, err, p.Err())
}

func TestPipeline_ZeroProgressWrite(t *testing.T) {
	p := New(stuckWriter{})
	slot := p.NewSlot()
	require.NoError(t, slot.Write(1))
	require.NoError(t, slot.Flush())

	err := p.Close()
	assert.True(t, errors.Is(err, io.ErrShortWrite))
}

func TestPipeline_RejectsBuffersAfterClose(t *testing.T) {
	var sink bytes.Buffer
	p := New(&sink)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	slot := p.NewSlot()
	require.NoError(t, slot.Write(1))
	assert.True(t, errors.Is(slot.Flush(), ErrClosed))
	assert.Zero(t, sink.Len())
}
