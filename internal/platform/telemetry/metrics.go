// Package telemetry keeps in-process relay metrics and serves them in the
// Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// durationBuckets are the request duration bucket boundaries in seconds.
var durationBuckets = []float64{
	0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0,
}

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// histogram stores non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 { return atomic.LoadInt64(&h.count) }

func (h *histogram) Sum() float64 { return math.Float64frombits(atomic.LoadUint64(&h.sum)) }

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	var running int64
	for i, c := range raw {
		running += c
		raw[i] = running
	}
	return raw
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(next)) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Labeled stores
// ---------------------------------------------------------------------------

// labelsKey joins label values; "|" never appears in a route or event name.
func labelsKey(values ...string) string {
	return strings.Join(values, "|")
}

type histogramStore struct {
	mu    sync.RWMutex
	items map[string]*histogram
}

func (s *histogramStore) getOrCreate(key string) *histogram {
	s.mu.RLock()
	h, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return h
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.items[key]; !ok {
		h = newHistogram(durationBuckets)
		s.items[key] = h
	}
	return h
}

func (s *histogramStore) get(key string) *histogram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[key]
}

func (s *histogramStore) snapshot() map[string]*histogram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]*histogram, len(s.items))
	for k, v := range s.items {
		cp[k] = v
	}
	return cp
}

type counterStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func (s *counterStore) add(key string, delta int64) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if p, ok = s.items[key]; !ok {
			p = new(int64)
			s.items[key] = p
		}
		s.mu.Unlock()
	}
	atomic.AddInt64(p, delta)
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

func (s *counterStore) snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]int64, len(s.items))
	for k, p := range s.items {
		cp[k] = atomic.LoadInt64(p)
	}
	return cp
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

type gaugeFunc struct {
	name string
	help string
	fn   func() int64
}

// Metrics is the relay's metric registry. The zero value is not usable; call
// NewMetrics.
type Metrics struct {
	requests       *histogramStore // method|route|status
	activeRequests int64
	events         *counterStore // origin|event
	deliveries     *counterStore // origin

	gaugeMu sync.RWMutex
	gauges  []gaugeFunc
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:   &histogramStore{items: make(map[string]*histogram)},
		events:     &counterStore{items: make(map[string]*int64)},
		deliveries: &counterStore{items: make(map[string]*int64)},
	}
}

// GaugeFunc registers a gauge whose value is read at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() int64) {
	m.gaugeMu.Lock()
	defer m.gaugeMu.Unlock()
	m.gauges = append(m.gauges, gaugeFunc{name: name, help: help, fn: fn})
}

// EventRouted counts one event from origin ("bus" or "http") and the number
// of sessions it was queued for.
func (m *Metrics) EventRouted(origin, event string, sessions int) {
	m.events.add(labelsKey(origin, event), 1)
	m.deliveries.add(origin, int64(sessions))
}

// EventCount returns how many events named event arrived from origin.
func (m *Metrics) EventCount(origin, event string) int64 {
	return m.events.get(labelsKey(origin, event))
}

// DeliveryCount returns how many session deliveries origin produced.
func (m *Metrics) DeliveryCount(origin string) int64 {
	return m.deliveries.get(origin)
}

// RequestCount returns the number of finished requests for a route pattern.
func (m *Metrics) RequestCount(method, route string, status int) int64 {
	h := m.requests.get(labelsKey(method, route, strconv.Itoa(status)))
	if h == nil {
		return 0
	}
	return h.Count()
}

// Middleware records request duration by method, route pattern and status.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.activeRequests, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&m.activeRequests, -1)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			m.requests.getOrCreate(labelsKey(c.Request().Method, route, strconv.Itoa(status))).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
		b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
		reqs := m.requests.snapshot()
		for _, key := range sortedKeys(reqs) {
			parts := strings.SplitN(key, "|", 3)
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, "http_server_request_duration_seconds", labels, reqs[key])
		}
		b.WriteByte('\n')

		writeGauge(&b, "http_server_active_requests", "Number of in-flight HTTP requests.", atomic.LoadInt64(&m.activeRequests))

		b.WriteString("# HELP relay_events_total Events accepted for routing.\n")
		b.WriteString("# TYPE relay_events_total counter\n")
		events := m.events.snapshot()
		for _, key := range sortedKeys(events) {
			parts := strings.SplitN(key, "|", 2)
			fmt.Fprintf(&b, "relay_events_total{origin=%q,event=%q} %d\n", parts[0], parts[1], events[key])
		}
		b.WriteByte('\n')

		b.WriteString("# HELP relay_deliveries_total Events queued to sessions.\n")
		b.WriteString("# TYPE relay_deliveries_total counter\n")
		deliveries := m.deliveries.snapshot()
		for _, key := range sortedKeys(deliveries) {
			fmt.Fprintf(&b, "relay_deliveries_total{origin=%q} %d\n", key, deliveries[key])
		}
		b.WriteByte('\n')

		m.gaugeMu.RLock()
		gauges := append([]gaugeFunc(nil), m.gauges...)
		m.gaugeMu.RUnlock()
		for _, g := range gauges {
			writeGauge(&b, g.name, g.help, g.fn())
		}

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeGauge(b *strings.Builder, name, help string, v int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %d\n\n", name, v)
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	total := h.Count()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
