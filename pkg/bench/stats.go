package bench

import (
	"fmt"
	"slices"
	"time"

	"github.com/billm/ipcbench/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat"
)

// transportBuckets spans 100ns to roughly 400ms
var transportBuckets = prometheus.ExponentialBuckets(1e-7, 4, 12)

// Recorder accumulates the timed transport calls of one run
type Recorder struct {
	role    types.Party
	mode    types.Mode
	total   time.Duration
	samples []float64 // nanoseconds

	registry *prometheus.Registry
	latency  prometheus.Histogram
	messages prometheus.Counter
	seconds  prometheus.Gauge
}

// NewRecorder creates a Recorder whose metrics are labelled with role and mode
func NewRecorder(role types.Party, mode types.Mode) *Recorder {
	labels := prometheus.Labels{
		"role":      role.String(),
		"mechanism": mode.String(),
	}

	r := &Recorder{
		role:     role,
		mode:     mode,
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ipcbench_transport_seconds",
			Help:        "Duration of individual transport calls",
			ConstLabels: labels,
			Buckets:     transportBuckets,
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ipcbench_messages_total",
			Help:        "Number of timed transport calls, exit marker included",
			ConstLabels: labels,
		}),
		seconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ipcbench_transport_seconds_total",
			Help:        "Accumulated time spent inside transport calls",
			ConstLabels: labels,
		}),
	}
	r.registry.MustRegister(r.latency, r.messages, r.seconds)
	return r
}

// Observe records one timed transport call
func (r *Recorder) Observe(d time.Duration) {
	r.total += d
	r.samples = append(r.samples, float64(d))

	r.latency.Observe(d.Seconds())
	r.messages.Inc()
	r.seconds.Set(r.total.Seconds())
}

// Total returns the accumulated transport time
func (r *Recorder) Total() time.Duration {
	return r.total
}

// Count returns the number of recorded calls
func (r *Recorder) Count() int {
	return len(r.samples)
}

// Summary describes the distribution of recorded calls
type Summary struct {
	Count  int
	Total  time.Duration
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P99    time.Duration
	Max    time.Duration
}

// Summary computes the distribution of the recorded calls
func (r *Recorder) Summary() Summary {
	s := Summary{Count: len(r.samples), Total: r.total}
	if s.Count == 0 {
		return s
	}

	sorted := slices.Clone(r.samples)
	slices.Sort(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if s.Count < 2 {
		std = 0
	}
	s.Mean = time.Duration(mean)
	s.StdDev = time.Duration(std)
	s.P50 = time.Duration(stat.Quantile(0.5, stat.Empirical, sorted, nil))
	s.P99 = time.Duration(stat.Quantile(0.99, stat.Empirical, sorted, nil))
	s.Max = time.Duration(sorted[len(sorted)-1])
	return s
}

// Fields returns the summary as logger key/value pairs
func (s Summary) Fields() []any {
	return []any{
		"count", s.Count,
		"total", s.Total,
		"mean", s.Mean,
		"stddev", s.StdDev,
		"p50", s.P50,
		"p99", s.P99,
		"max", s.Max,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("Summary{Count: %d, Total: %s, Mean: %s, StdDev: %s, P50: %s, P99: %s, Max: %s}",
		s.Count, s.Total, s.Mean, s.StdDev, s.P50, s.P99, s.Max)
}

// WriteTextfile writes the metrics in Prometheus text format for the node
// exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return types.WrapError(types.ErrCodeInternal, "failed to write metrics textfile", err)
	}
	return nil
}
