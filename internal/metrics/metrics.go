// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
    "errors"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"

    "github.com/iliyamo/seat-admission/internal/model"
)

var (
    QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
        Name: "admission_queue_length",
        Help: "Entries currently in the waiting room, including lapsed entries not yet swept.",
    })

    Enqueues = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "admission_enqueue_total",
        Help: "Enqueue calls by outcome.",
    }, []string{"result"})

    HoldAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "seat_hold_attempts_total",
        Help: "Seat hold attempts by outcome.",
    }, []string{"result"})

    Commits = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "reservation_commits_total",
        Help: "Reservation commit attempts by outcome.",
    }, []string{"result"})

    SweepReleased = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "expiry_sweep_released_total",
        Help: "Entries released by the expiry sweep.",
    }, []string{"kind"})

    SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
        Name: "expiry_sweep_errors_total",
        Help: "Per-item failures during the expiry sweep.",
    })

    SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
        Name:    "expiry_sweep_duration_seconds",
        Help:    "Wall time of one sweep pass.",
        Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
    })
)

// Result maps an engine error to a low-cardinality label value.
func Result(err error) string {
    switch {
    case err == nil:
        return "ok"
    case errors.Is(err, model.ErrInvalidToken):
        return "invalid_token"
    case errors.Is(err, model.ErrExpired):
        return "expired"
    case errors.Is(err, model.ErrNotFound):
        return "not_found"
    case errors.Is(err, model.ErrNotAdmitted):
        return "not_admitted"
    case errors.Is(err, model.ErrSeatUnavailable):
        return "unavailable"
    case errors.Is(err, model.ErrHoldMismatch):
        return "mismatch"
    case errors.Is(err, model.ErrHoldExpired):
        return "hold_expired"
    case errors.Is(err, model.ErrCommitInProgress):
        return "in_progress"
    case errors.Is(err, model.ErrUnknownDate), errors.Is(err, model.ErrUnknownSeat):
        return "unknown"
    default:
        return "error"
    }
}
