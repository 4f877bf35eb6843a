package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	derivationStartedTotal   atomic.Uint64
	derivationCompletedTotal atomic.Uint64
	derivationFailedTotal    atomic.Uint64
	metadataDegradedTotal    atomic.Uint64
	compileTotal             atomic.Uint64
	compileFailedTotal       atomic.Uint64
	autosaveFailedTotal      atomic.Uint64

	durationBuckets    = []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000}
	derivationDuration = newHistogram(durationBuckets)
	compileDuration    = newHistogram(durationBuckets)
)

// IncDerivationStarted increments the started counter.
func IncDerivationStarted() { derivationStartedTotal.Add(1) }

// IncDerivationCompleted increments the completed counter.
func IncDerivationCompleted() { derivationCompletedTotal.Add(1) }

// IncDerivationFailed increments the failed counter.
func IncDerivationFailed() { derivationFailedTotal.Add(1) }

// IncMetadataDegraded counts derivations that finished without metadata.
func IncMetadataDegraded() { metadataDegradedTotal.Add(1) }

// IncCompile counts compile requests; failed marks upstream failures.
func IncCompile(failed bool) {
	compileTotal.Add(1)
	if failed {
		compileFailedTotal.Add(1)
	}
}

// IncAutosaveFailed counts persistence failures reported by editor sessions.
func IncAutosaveFailed() { autosaveFailedTotal.Add(1) }

// ObserveDerivation records a derivation duration.
func ObserveDerivation(d time.Duration) { derivationDuration.Observe(millis(d)) }

// ObserveCompile records a compile duration.
func ObserveCompile(d time.Duration) { compileDuration.Observe(millis(d)) }

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "letter_derivation_started_total", "Total derivations started", derivationStartedTotal.Load())
	writeCounter(&buf, "letter_derivation_completed_total", "Total derivations completed", derivationCompletedTotal.Load())
	writeCounter(&buf, "letter_derivation_failed_total", "Total derivations failed", derivationFailedTotal.Load())
	writeCounter(&buf, "letter_metadata_degraded_total", "Derivations returned without metadata", metadataDegradedTotal.Load())
	writeCounter(&buf, "letter_compile_total", "Total compile requests", compileTotal.Load())
	writeCounter(&buf, "letter_compile_failed_total", "Total failed compile requests", compileFailedTotal.Load())
	writeCounter(&buf, "letter_autosave_failed_total", "Total failed autosave calls", autosaveFailedTotal.Load())
	writeHistogram(&buf, "letter_derivation_duration_ms", "Derivation duration in milliseconds", derivationDuration.Snapshot())
	writeHistogram(&buf, "letter_compile_duration_ms", "Compile duration in milliseconds", compileDuration.Snapshot())
	return buf.String()
}

func millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d.Microseconds()) / 1000.0
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value in the first bucket that holds it; writeHistogram accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
