// Package sweeper runs the recurring pass that releases lapsed queue
// entries and seat holds.  Every release goes through the owning
// component's own atomic operation, so a sweep racing a foreground hold
// or commit is resolved by that component's lock rather than by timing.
package sweeper

import (
    "context"
    "log"
    "time"

    "github.com/iliyamo/seat-admission/internal/metrics"
    "github.com/iliyamo/seat-admission/internal/model"
)

// QueueExpirer is the queue surface the sweeper needs.
type QueueExpirer interface {
    ExpiredSubjects() []string
    DequeueIfExpired(subjectID string) bool
    Len() int
}

// HoldExpirer is the seat-table surface the sweeper needs.
type HoldExpirer interface {
    ExpiredHolds() []model.SeatRef
    ReleaseIfExpired(date, seatID string) (bool, error)
}

// Snapshotter persists engine state after a pass.  It is called with no
// lock held.
type Snapshotter interface {
    Save(ctx context.Context) error
}

// Result summarizes one pass.
type Result struct {
    QueueExpired  int
    HoldsReleased int
    Errors        int
}

// Sweeper owns the background loop.
type Sweeper struct {
    queue    QueueExpirer
    holds    HoldExpirer
    interval time.Duration
    snap     Snapshotter
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSnapshotter persists state after every pass.
func WithSnapshotter(s Snapshotter) Option {
    return func(sw *Sweeper) { sw.snap = s }
}

// New returns a Sweeper running every interval.
func New(queue QueueExpirer, holds HoldExpirer, interval time.Duration, opts ...Option) *Sweeper {
    if interval <= 0 {
        interval = 2 * time.Second
    }
    sw := &Sweeper{queue: queue, holds: holds, interval: interval}
    for _, o := range opts {
        o(sw)
    }
    return sw
}

// SweepOnce runs one pass synchronously.  Failures on individual items are
// logged and counted; the rest of the pass continues.
func (s *Sweeper) SweepOnce(ctx context.Context) Result {
    start := time.Now()
    var res Result

    for _, id := range s.queue.ExpiredSubjects() {
        if s.queue.DequeueIfExpired(id) {
            res.QueueExpired++
        }
    }

    for _, ref := range s.holds.ExpiredHolds() {
        if ctx.Err() != nil {
            break
        }
        ok, err := s.holds.ReleaseIfExpired(ref.Date, ref.SeatID)
        if err != nil {
            res.Errors++
            log.Printf("sweeper: release failed date=%s seat=%s: %v", ref.Date, ref.SeatID, err)
            continue
        }
        if ok {
            res.HoldsReleased++
        }
    }

    if s.snap != nil && ctx.Err() == nil {
        if err := s.snap.Save(ctx); err != nil {
            res.Errors++
            log.Printf("sweeper: snapshot failed: %v", err)
        }
    }

    metrics.QueueLength.Set(float64(s.queue.Len()))
    metrics.SweepReleased.WithLabelValues("queue").Add(float64(res.QueueExpired))
    metrics.SweepReleased.WithLabelValues("hold").Add(float64(res.HoldsReleased))
    metrics.SweepErrors.Add(float64(res.Errors))
    metrics.SweepDuration.Observe(time.Since(start).Seconds())
    return res
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
    ticker := time.NewTicker(s.interval)
    defer ticker.Stop()
    log.Printf("sweeper: started interval=%s", s.interval)
    for {
        select {
        case <-ctx.Done():
            log.Printf("sweeper: stopped")
            return
        case <-ticker.C:
            res := s.SweepOnce(ctx)
            if res.QueueExpired > 0 || res.HoldsReleased > 0 || res.Errors > 0 {
                log.Printf("sweeper: pass queue_expired=%d holds_released=%d errors=%d",
                    res.QueueExpired, res.HoldsReleased, res.Errors)
            }
        }
    }
}
