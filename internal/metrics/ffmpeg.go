// Package metrics provides Prometheus metrics for encode units and batches.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/reframer/internal/ffmpeg"
)

const namespace = "reframer"

var (
	encodeFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encode",
		Name:      "fps",
		Help:      "Current encoding FPS",
	}, []string{"unit_id"})

	encodeSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encode",
		Name:      "processing_speed",
		Help:      "Encoding speed multiplier",
	}, []string{"unit_id"})

	encodeFrame = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encode",
		Name:      "frame",
		Help:      "Frames encoded so far",
	}, []string{"unit_id"})

	activeEncodes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encode",
		Name:      "active",
		Help:      "Encodes currently running",
	})

	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "units_total",
		Help:      "Finished units by status",
	}, []string{"status"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encode",
		Name:      "fallbacks_total",
		Help:      "Hardware encodes that fell back to software",
	}, []string{"encoder"})

	stallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encode",
		Name:      "stalls_total",
		Help:      "Encodes killed by the stall watchdog",
	}, []string{"encoder"})

	encodeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "encode",
		Name:      "duration_seconds",
		Help:      "Wall time of successful unit encodes",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"encoder"})

	// Local cache for the status API.
	unitCache   = make(map[string]*UnitMetrics)
	unitCacheMu sync.RWMutex
)

// UnitMetrics holds current metric values for a running unit.
type UnitMetrics struct {
	Frame int64   `json:"frame"`
	FPS   float64 `json:"fps"`
	Speed float64 `json:"speed"`
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSnapshot records one ffmpeg -progress block for a unit.
func ObserveSnapshot(unitID string, s ffmpeg.Snapshot) {
	encodeFPS.WithLabelValues(unitID).Set(s.FPS)
	encodeSpeed.WithLabelValues(unitID).Set(s.Speed)
	encodeFrame.WithLabelValues(unitID).Set(float64(s.Frame))
	updateCache(unitID, func(m *UnitMetrics) {
		m.Frame = s.Frame
		m.FPS = s.FPS
		m.Speed = s.Speed
	})
}

// EncodeStarted marks a unit encode as running.
func EncodeStarted() { activeEncodes.Inc() }

// EncodeFinished removes per-unit series and decrements the active gauge.
func EncodeFinished(unitID string) {
	activeEncodes.Dec()
	DeleteUnitMetrics(unitID)
}

// UnitFinished counts a unit outcome ("processed", "skipped", "failed").
func UnitFinished(status string) { unitsTotal.WithLabelValues(status).Inc() }

// Fallback counts a hardware-to-software fallback.
func Fallback(hardwareEncoder string) { fallbacksTotal.WithLabelValues(hardwareEncoder).Inc() }

// Stall counts a watchdog kill.
func Stall(encoder string) { stallsTotal.WithLabelValues(encoder).Inc() }

// EncodeDuration records the wall time of a successful encode.
func EncodeDuration(encoder string, seconds float64) {
	encodeSeconds.WithLabelValues(encoder).Observe(seconds)
}

// DeleteUnitMetrics removes all gauges for a unit.
func DeleteUnitMetrics(unitID string) {
	encodeFPS.DeleteLabelValues(unitID)
	encodeSpeed.DeleteLabelValues(unitID)
	encodeFrame.DeleteLabelValues(unitID)

	unitCacheMu.Lock()
	delete(unitCache, unitID)
	unitCacheMu.Unlock()
}

// GetUnitMetrics returns current metric values for a unit.
func GetUnitMetrics(unitID string) *UnitMetrics {
	unitCacheMu.RLock()
	defer unitCacheMu.RUnlock()
	if m, ok := unitCache[unitID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllUnitMetrics returns metrics for all running units.
func GetAllUnitMetrics() map[string]*UnitMetrics {
	unitCacheMu.RLock()
	defer unitCacheMu.RUnlock()
	result := make(map[string]*UnitMetrics, len(unitCache))
	for id, m := range unitCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(unitID string, update func(*UnitMetrics)) {
	unitCacheMu.Lock()
	defer unitCacheMu.Unlock()
	m, ok := unitCache[unitID]
	if !ok {
		m = &UnitMetrics{}
		unitCache[unitID] = m
	}
	update(m)
}
