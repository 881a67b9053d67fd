package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector manages Prometheus metrics for the fiscal pipeline. A nil
// collector is valid and records nothing, which keeps the pipeline components
// usable in tests without a registry.
type Collector struct {
	resolutionsTotal *prometheus.CounterVec
	validationsTotal *prometheus.CounterVec
	faultsTotal      *prometheus.CounterVec
	generationsTotal *prometheus.CounterVec
	stampingsTotal   *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
}

// NewCollector registers and returns the pipeline metrics collector
func NewCollector() *Collector {
	return &Collector{
		resolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscal_catalog_resolutions_total",
			Help: "Postal-code resolutions by the layer that answered",
		}, []string{"layer"}),
		validationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscal_validations_total",
			Help: "Document validations by outcome",
		}, []string{"outcome"}),
		faultsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscal_validation_faults_total",
			Help: "Validation faults by severity",
		}, []string{"severity"}),
		generationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscal_generations_total",
			Help: "Document generations by mode and outcome",
		}, []string{"mode", "outcome"}),
		stampingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscal_stampings_total",
			Help: "Stamping attempts by outcome",
		}, []string{"outcome"}),
		stageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fiscal_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// RecordResolution counts a postal-code resolution answered by a layer
func (c *Collector) RecordResolution(layer string) {
	if c == nil {
		return
	}
	c.resolutionsTotal.WithLabelValues(layer).Inc()
}

// RecordValidation counts a validation run and its faults
func (c *Collector) RecordValidation(valid bool, severityCounts map[string]int) {
	if c == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	c.validationsTotal.WithLabelValues(outcome).Inc()
	for severity, count := range severityCounts {
		c.faultsTotal.WithLabelValues(severity).Add(float64(count))
	}
}

// RecordGeneration counts a generation attempt
func (c *Collector) RecordGeneration(mode string, ok bool) {
	if c == nil {
		return
	}
	outcome := "generated"
	if !ok {
		outcome = "refused"
	}
	c.generationsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordStamping counts a stamping attempt
func (c *Collector) RecordStamping(outcome string) {
	if c == nil {
		return
	}
	c.stampingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records the duration of a pipeline stage
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
