package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mlwelles/heapsizegen/heapsize"
)

var sliceHeader = int(unsafe.Sizeof([]byte(nil)))

func TestCollector(t *testing.T) {
	c := NewCollector("")
	buf := make([]byte, 0, 64)
	Track(c, "buffer", &buf)

	expected := `
# HELP heapsize_heap_bytes Bytes owned on the heap by a tracked object
# TYPE heapsize_heap_bytes gauge
heapsize_heap_bytes{object="buffer"} 64
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "heapsize_heap_bytes"))
	assert.Equal(t, 2, testutil.CollectAndCount(c))

	// values are measured at scrape time
	buf = make([]byte, 0, 128)
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)

	got := map[string]float64{}
	for _, f := range families {
		require.Len(t, f.GetMetric(), 1)
		got[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 128.0, got["heapsize_heap_bytes"])
	assert.Equal(t, float64(sliceHeader+128), got["heapsize_total_bytes"])
}

func TestTrackReplaceAndUntrack(t *testing.T) {
	c := NewCollector("app")
	a, b := "abc", "de"
	Track(c, "name", &a)
	Track(c, "other", &b)
	Track(c, "name", &b)

	assert.Equal(t, []string{"name", "other"}, c.Tracked())
	assert.Equal(t, 4, testutil.CollectAndCount(c, "app_heap_bytes", "app_total_bytes"))

	c.Untrack("name")
	assert.Equal(t, []string{"other"}, c.Tracked())
	assert.Equal(t, 2, testutil.CollectAndCount(c))
}

func TestCollectorPoisoned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	l := heapsize.NewLocked([]int{})
	assert.Panics(t, func() { l.With(func(*[]int) { panic("boom") }) })

	c := NewCollector("")
	Track(c, "locked", l)

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	_, err := reg.Gather()
	require.Error(t, err)
	assert.ErrorContains(t, err, heapsize.ErrPoisoned.Error())

	entries := logs.FilterMessage("measurement failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "locked", entries[0].ContextMap()["object"])
}

func TestHandler(t *testing.T) {
	c := NewCollector("svc")
	m := map[string]int{"a": 1}
	Track(c, "index", &m)

	srv := httptest.NewServer(Handler(c))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `svc_heap_bytes{object="index"}`)
	assert.Contains(t, string(body), `svc_total_bytes{object="index"}`)
}
