// Package admission implements the waiting room that rations access to
// seat holds.  Subjects join an ordered, deduplicated queue; the first
// BatchSize positions form the admitted window and may place holds.
package admission

import (
    "sync"
    "time"

    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/model"
)

// Config controls entry lifetime and the rationing rule.
type Config struct {
    EntryTTL        time.Duration // lifetime of an entry, refreshed on re-enqueue
    BatchSize       int           // size of the admitted window
    MinutesPerBatch int           // estimated minutes to process one batch
}

// EnqueueResult describes the outcome of Enqueue.
type EnqueueResult struct {
    Position      int
    Admitted      bool
    AlreadyQueued bool
    ExpiresAt     time.Time
}

// Status describes a queued subject's standing.
type Status struct {
    Position             int       `json:"position"`
    RemainingAhead       int       `json:"remaining_ahead"`
    EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
    Admitted             bool      `json:"admitted"`
    ExpiresAt            time.Time `json:"expires_at"`
}

// Queue is the waiting room.  All operations run inside one critical
// section, so positions are well defined at every instant.  A Queue is
// created once per process and shared by handlers and the sweeper.
type Queue struct {
    cfg   Config
    clock clock.Clock

    mu      sync.Mutex
    entries []model.QueueEntry
    index   map[string]struct{}
}

// New returns an empty queue.
func New(cfg Config, clk clock.Clock) *Queue {
    if cfg.BatchSize < 1 {
        cfg.BatchSize = 1
    }
    if cfg.EntryTTL <= 0 {
        cfg.EntryTTL = 5 * time.Minute
    }
    if clk == nil {
        clk = clock.Real()
    }
    return &Queue{cfg: cfg, clock: clk, index: make(map[string]struct{})}
}

// Enqueue appends subjectID if it is not queued and refreshes its expiry.
// Re-enqueueing a live entry keeps its position.  An entry that lapsed but
// was not yet swept is replaced by a fresh entry at the tail.
func (q *Queue) Enqueue(subjectID string) (EnqueueResult, error) {
    if subjectID == "" {
        return EnqueueResult{}, model.ErrNotFound
    }
    q.mu.Lock()
    defer q.mu.Unlock()

    now := q.clock.Now()
    exp := now.Add(q.cfg.EntryTTL)
    if pos := q.positionLocked(subjectID); pos >= 0 {
        if !q.entries[pos].Expired(now) {
            q.entries[pos].ExpiresAt = exp
            live := q.livePositionLocked(pos, now)
            return EnqueueResult{Position: live, Admitted: q.remainingAhead(live) == 0, AlreadyQueued: true, ExpiresAt: exp}, nil
        }
        q.removeLocked(pos)
    }
    q.entries = append(q.entries, model.QueueEntry{SubjectID: subjectID, EnqueuedAt: now, ExpiresAt: exp})
    q.index[subjectID] = struct{}{}
    live := q.livePositionLocked(len(q.entries)-1, now)
    return EnqueueResult{Position: live, Admitted: q.remainingAhead(live) == 0, ExpiresAt: exp}, nil
}

// Status reports position and wait estimate.  It fails with ErrNotFound
// when the subject is absent or its entry has lapsed.  Lapsed entries not
// yet swept do not count ahead of the subject.
func (q *Queue) Status(subjectID string) (Status, error) {
    q.mu.Lock()
    defer q.mu.Unlock()

    now := q.clock.Now()
    idx := q.positionLocked(subjectID)
    if idx < 0 || q.entries[idx].Expired(now) {
        return Status{}, model.ErrNotFound
    }
    pos := q.livePositionLocked(idx, now)
    ahead := q.remainingAhead(pos)
    return Status{
        Position:             pos,
        RemainingAhead:       ahead,
        EstimatedWaitMinutes: q.estimateMinutes(ahead),
        Admitted:             ahead == 0,
        ExpiresAt:            q.entries[idx].ExpiresAt,
    }, nil
}

// remainingAhead counts the subjects that must leave the admitted window
// before pos enters it.
func (q *Queue) remainingAhead(pos int) int {
    n := pos + 1 - q.cfg.BatchSize
    if n < 0 {
        return 0
    }
    return n
}

func (q *Queue) estimateMinutes(ahead int) int {
    batches := (ahead + q.cfg.BatchSize - 1) / q.cfg.BatchSize
    return batches * q.cfg.MinutesPerBatch
}

// Dequeue removes subjectID.  Removing an absent subject is a no-op.
func (q *Queue) Dequeue(subjectID string) {
    q.mu.Lock()
    defer q.mu.Unlock()
    if pos := q.positionLocked(subjectID); pos >= 0 {
        q.removeLocked(pos)
    }
}

// DequeueIfExpired removes subjectID only if its entry has lapsed at the
// moment of the call.  An entry refreshed since it was observed as expired
// is left alone.
func (q *Queue) DequeueIfExpired(subjectID string) bool {
    q.mu.Lock()
    defer q.mu.Unlock()
    pos := q.positionLocked(subjectID)
    if pos < 0 || !q.entries[pos].Expired(q.clock.Now()) {
        return false
    }
    q.removeLocked(pos)
    return true
}

// ExpiredSubjects lists subjects whose entries have lapsed.
func (q *Queue) ExpiredSubjects() []string {
    q.mu.Lock()
    defer q.mu.Unlock()
    now := q.clock.Now()
    var out []string
    for _, e := range q.entries {
        if e.Expired(now) {
            out = append(out, e.SubjectID)
        }
    }
    return out
}

// Len returns the number of entries, lapsed or not.
func (q *Queue) Len() int {
    q.mu.Lock()
    defer q.mu.Unlock()
    return len(q.entries)
}

// Snapshot copies the entries in queue order.
func (q *Queue) Snapshot() []model.QueueEntry {
    q.mu.Lock()
    defer q.mu.Unlock()
    out := make([]model.QueueEntry, len(q.entries))
    copy(out, q.entries)
    return out
}

// Restore replaces the queue contents with entries, keeping their order
// and dropping duplicates and lapsed entries.
func (q *Queue) Restore(entries []model.QueueEntry) {
    q.mu.Lock()
    defer q.mu.Unlock()
    now := q.clock.Now()
    q.entries = q.entries[:0]
    q.index = make(map[string]struct{}, len(entries))
    for _, e := range entries {
        if e.SubjectID == "" || e.Expired(now) {
            continue
        }
        if _, dup := q.index[e.SubjectID]; dup {
            continue
        }
        q.entries = append(q.entries, e)
        q.index[e.SubjectID] = struct{}{}
    }
}

func (q *Queue) positionLocked(subjectID string) int {
    if _, ok := q.index[subjectID]; !ok {
        return -1
    }
    for i := range q.entries {
        if q.entries[i].SubjectID == subjectID {
            return i
        }
    }
    return -1
}

// livePositionLocked counts the live entries before index idx.
func (q *Queue) livePositionLocked(idx int, now time.Time) int {
    n := 0
    for i := 0; i < idx; i++ {
        if !q.entries[i].Expired(now) {
            n++
        }
    }
    return n
}

func (q *Queue) removeLocked(pos int) {
    delete(q.index, q.entries[pos].SubjectID)
    q.entries = append(q.entries[:pos], q.entries[pos+1:]...)
}
