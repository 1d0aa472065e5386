// Package observability exposes a minimal, dependency-free Prometheus text
// exporter for the job-processor's own metrics. No metrics client is part of
// the example corpus this project draws on, so the counters/gauges/
// histograms below are hand-rolled in the same style the donor codebase
// itself uses, rather than pulled from an external library.
package observability

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	stageDuration *HistogramVec
	stageTotal    *CounterVec
	recordTotal   *CounterVec
	jobTotal      *CounterVec
	queueDepth    *GaugeVec
	workerBusy    *Gauge
	adapterCalls  *CounterVec
	adapterRetry  *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics { return instance }

func Init() *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = &Metrics{
			apiRequests: NewCounterVec("jp_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec(
				"jp_api_request_duration_seconds",
				"API request latency in seconds.",
				[]string{"method", "route", "status"},
				[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			),
			apiInflight: NewGauge("jp_api_inflight_requests", "In-flight API requests."),
			stageDuration: NewHistogramVec(
				"jp_stage_duration_seconds",
				"Stage execution duration in seconds by stage/status.",
				[]string{"stage", "status"},
				[]float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			),
			stageTotal: NewCounterVec("jp_stage_total", "Stage executions by stage/status.", []string{"stage", "status"}),
			recordTotal: NewCounterVec("jp_record_total", "Records finalized by terminal status.", []string{"status"}),
			jobTotal:    NewCounterVec("jp_job_total", "Jobs finalized by terminal status.", []string{"status"}),
			queueDepth:  NewGaugeVec("jp_job_queue_depth", "Queued jobs by status.", []string{"status"}),
			workerBusy:  NewGauge("jp_worker_slots_in_use", "Job-runner concurrency slots currently occupied."),
			adapterCalls: NewCounterVec(
				"jp_adapter_calls_total",
				"Stage-adapter HTTP calls by stage/outcome.",
				[]string{"stage", "outcome"},
			),
			adapterRetry: NewCounterVec(
				"jp_adapter_retries_total",
				"Stage-adapter HTTP retries by stage.",
				[]string{"stage"},
			),
		}
	})
	return instance
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() { m.apiInflight.Inc() }
func (m *Metrics) ApiInflightDec() { m.apiInflight.Dec() }

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Observe(dur.Seconds(), stage, status)
	m.stageTotal.Inc(stage, status)
}

func (m *Metrics) RecordFinalized(status string) {
	if m == nil {
		return
	}
	m.recordTotal.Inc(status)
}

func (m *Metrics) JobFinalized(status string) {
	if m == nil {
		return
	}
	m.jobTotal.Inc(status)
}

func (m *Metrics) SetQueueDepth(status string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n), status)
}

func (m *Metrics) WorkerSlotsInUse(n int) {
	if m == nil {
		return
	}
	m.workerBusy.Set(float64(n))
}

func (m *Metrics) AdapterCall(stage, outcome string) {
	if m == nil {
		return
	}
	m.adapterCalls.Inc(stage, outcome)
}

func (m *Metrics) AdapterRetry(stage string) {
	if m == nil {
		return
	}
	m.adapterRetry.Inc(stage)
}

// Handler serves the accumulated metrics in Prometheus text-exposition format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if m == nil {
			return
		}
		for _, writer := range []interface{ WritePrometheus(io.Writer) error }{
			m.apiRequests, m.apiLatency, m.apiInflight,
			m.stageDuration, m.stageTotal, m.recordTotal, m.jobTotal,
			m.queueDepth, m.workerBusy, m.adapterCalls, m.adapterRetry,
		} {
			_ = writer.WritePrometheus(w)
		}
	}
}

type Counter struct {
	name, help string
	mu         sync.RWMutex
	val        float64
}

func NewCounter(name, help string) *Counter { return &Counter{name: name, help: help} }
func (c *Counter) Inc()                     { c.Add(1) }
func (c *Counter) Add(v float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val += v
	c.mu.Unlock()
}
func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", c.name, c.val)
	return err
}

type CounterVec struct {
	name, help string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}
func (c *CounterVec) Inc(values ...string) { c.Add(1, values...) }
func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}
func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type Gauge struct {
	name, help string
	mu         sync.RWMutex
	val        float64
}

func NewGauge(name, help string) *Gauge { return &Gauge{name: name, help: help} }
func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}
func (g *Gauge) Inc() { g.add(1) }
func (g *Gauge) Dec() { g.add(-1) }
func (g *Gauge) add(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val += v
	g.mu.Unlock()
}
func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
}

type GaugeVec struct {
	name, help string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}
func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}
func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
	g.mu.RLock()
	defer g.mu.RUnlock()
	for k, v := range g.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", g.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

type HistogramVec struct {
	name, help string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{buckets: h.buckets, counts: make([]uint64, len(h.buckets)+1)}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, strconv.FormatFloat(b, 'g', -1, 64)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum)
		fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total)
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
}
