package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "showroom"

// Refresh outcomes.
const (
	RefreshFresh     = "fresh"
	RefreshUnchanged = "unchanged"
	RefreshError     = "error"
)

// Metrics exports inventory sync, upload lifecycle and blob cleanup counters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	refreshes          *prometheus.CounterVec
	refreshDuration    prometheus.Histogram
	staleServes        prometheus.Counter
	uploadTransitions  *prometheus.CounterVec
	blobDeleteFailures prometheus.Counter
}

// New registers the collectors on reg, reusing collectors that are already
// registered there.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "refreshes_total",
			Help:      "Inventory refreshes by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching and persisting an inventory snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		staleServes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "stale_serves_total",
			Help:      "Reads answered with a stale snapshot after a failure.",
		}),
		uploadTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "web_companion",
			Name:      "upload_transitions_total",
			Help:      "Companion upload records written, by resulting status.",
		}, []string{"status"}),
		blobDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blob",
			Name:      "delete_failures_total",
			Help:      "Blob deletions that failed after their metadata was removed.",
		}),
	}

	var err error
	if m.refreshes, err = register(reg, m.refreshes); err != nil {
		return nil, err
	}
	if m.refreshDuration, err = register(reg, m.refreshDuration); err != nil {
		return nil, err
	}
	if m.staleServes, err = register(reg, m.staleServes); err != nil {
		return nil, err
	}
	if m.uploadTransitions, err = register(reg, m.uploadTransitions); err != nil {
		return nil, err
	}
	if m.blobDeleteFailures, err = register(reg, m.blobDeleteFailures); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

func (m *Metrics) ObserveRefresh(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(d.Seconds())
}

func (m *Metrics) StaleServed() {
	if m == nil {
		return
	}
	m.staleServes.Inc()
}

func (m *Metrics) UploadTransition(status string) {
	if m == nil {
		return
	}
	m.uploadTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) BlobDeleteFailed() {
	if m == nil {
		return
	}
	m.blobDeleteFailures.Inc()
}
