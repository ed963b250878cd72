// Package metrics exports the heap footprint of long-lived values to
// Prometheus. Values are measured on every scrape.
package metrics

import (
	"net/http"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mlwelles/heapsizegen/heapsize"
)

// DefaultNamespace prefixes metric names when NewCollector is given none.
const DefaultNamespace = "heapsize"

type measureFunc func() (heap, total int, err error)

// Collector is a prometheus.Collector reporting the heap-owned and total bytes
// of tracked values.
type Collector struct {
	mu      sync.Mutex
	tracked map[string]measureFunc

	heapDesc  *prometheus.Desc
	totalDesc *prometheus.Desc
}

// NewCollector creates a collector whose metrics are named
// <namespace>_heap_bytes and <namespace>_total_bytes.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Collector{
		tracked: make(map[string]measureFunc),
		heapDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "heap_bytes"),
			"Bytes owned on the heap by a tracked object",
			[]string{"object"}, nil,
		),
		totalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "total_bytes"),
			"Static size plus heap-owned bytes of a tracked object",
			[]string{"object"}, nil,
		),
	}
}

// Track starts reporting v under name, replacing any value tracked under the
// same name. The collector keeps v reachable until Untrack.
func Track[T any](c *Collector, name string, v *T) {
	static := heapsize.StaticSize[T]()
	fn := func() (int, int, error) {
		n, err := heapsize.TryOf(v)
		if err != nil {
			return 0, 0, err
		}
		return n, static + n, nil
	}

	c.mu.Lock()
	c.tracked[name] = fn
	c.mu.Unlock()
}

// Untrack stops reporting the value tracked under name.
func (c *Collector) Untrack(name string) {
	c.mu.Lock()
	delete(c.tracked, name)
	c.mu.Unlock()
}

// Tracked returns the names of tracked values in sorted order.
func (c *Collector) Tracked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.tracked))
	for name := range c.tracked {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.heapDesc
	ch <- c.totalDesc
}

// Collect implements prometheus.Collector. Measurement happens outside the
// collector's lock; a value whose measurement fails is reported as an invalid
// metric.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	snapshot := make(map[string]measureFunc, len(c.tracked))
	for name, fn := range c.tracked {
		snapshot[name] = fn
	}
	c.mu.Unlock()

	for name, fn := range snapshot {
		heap, total, err := fn()
		if err != nil {
			Logger().Warn("measurement failed", zap.String("object", name), zap.Error(err))
			ch <- prometheus.NewInvalidMetric(c.heapDesc, err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.heapDesc, prometheus.GaugeValue, float64(heap), name)
		ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(total), name)
	}
}

// Handler serves the collector's metrics on a dedicated registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(Logger()),
		ErrorHandling: promhttp.ContinueOnError,
	})
}
