// Package snapshot copies volatile engine state (queue order and live
// holds) to durable storage and reads it back on startup.  Reservations
// need no snapshot: they are written through on commit.
package snapshot

import (
    "context"
    "fmt"
    "log"
    "sort"
    "strings"
    "sync"

    "github.com/iliyamo/seat-admission/internal/model"
)

// QueueState is the in-memory queue surface.
type QueueState interface {
    Snapshot() []model.QueueEntry
    Restore(entries []model.QueueEntry)
}

// SeatState is the in-memory seat table surface.
type SeatState interface {
    Dates() []string
    Holds(date string) ([]model.Hold, error)
    Restore(date string, seatIDs, reserved []string, holds []model.Hold)
}

// QueueStore persists the queue.
type QueueStore interface {
    SaveQueueSnapshot(ctx context.Context, entries []model.QueueEntry) error
    FindQueueSnapshot(ctx context.Context) ([]model.QueueEntry, error)
}

// HoldStore persists holds per date.
type HoldStore interface {
    ReplaceHoldsForDate(ctx context.Context, date string, holds []model.Hold) error
    FindHoldsByDate(ctx context.Context, date string) ([]model.Hold, error)
}

// Catalogue lists dates and their seats.
type Catalogue interface {
    ListDates(ctx context.Context) ([]string, error)
    SeatIDs(ctx context.Context, date string) ([]string, error)
}

// ReservedSeats lists seats already committed on a date.
type ReservedSeats interface {
    ReservedSeatIDs(ctx context.Context, date string) ([]string, error)
}

// Snapshotter ties engine state to its stores.  A nil QueueStore skips the
// queue (e.g. when Redis is down).
type Snapshotter struct {
    queue    QueueState
    seats    SeatState
    qstore   QueueStore
    holds    HoldStore
    catalog  Catalogue
    reserved ReservedSeats

    mu   sync.Mutex
    last map[string]string // date -> fingerprint of the holds last written
}

func New(queue QueueState, seats SeatState, qstore QueueStore, holds HoldStore, catalog Catalogue, reserved ReservedSeats) *Snapshotter {
    return &Snapshotter{
        queue:    queue,
        seats:    seats,
        qstore:   qstore,
        holds:    holds,
        catalog:  catalog,
        reserved: reserved,
        last:     make(map[string]string),
    }
}

// Save writes the current queue and, for every date whose holds changed
// since the previous Save, that date's holds.  A failing date does not
// stop the others; the first error is returned.
func (s *Snapshotter) Save(ctx context.Context) error {
    s.mu.Lock()
    defer s.mu.Unlock()

    var first error
    if s.qstore != nil {
        if err := s.qstore.SaveQueueSnapshot(ctx, s.queue.Snapshot()); err != nil {
            first = fmt.Errorf("save queue snapshot: %w", err)
        }
    }
    for _, date := range s.seats.Dates() {
        holds, err := s.seats.Holds(date)
        if err != nil {
            continue
        }
        fp := fingerprint(holds)
        if prev, ok := s.last[date]; ok && prev == fp {
            continue
        }
        if err := s.holds.ReplaceHoldsForDate(ctx, date, holds); err != nil {
            if first == nil {
                first = fmt.Errorf("save holds %s: %w", date, err)
            }
            continue
        }
        s.last[date] = fp
    }
    return first
}

// Restore rebuilds the seat table for every catalogued date from stored
// reservations and holds, then the queue.  Lapsed entries and holds are
// dropped by the in-memory components.  It returns the dates restored.
func (s *Snapshotter) Restore(ctx context.Context) ([]string, error) {
    dates, err := s.catalog.ListDates(ctx)
    if err != nil {
        return nil, fmt.Errorf("list dates: %w", err)
    }
    for _, date := range dates {
        seatIDs, err := s.catalog.SeatIDs(ctx, date)
        if err != nil {
            return nil, fmt.Errorf("seats for %s: %w", date, err)
        }
        reserved, err := s.reserved.ReservedSeatIDs(ctx, date)
        if err != nil {
            return nil, fmt.Errorf("reservations for %s: %w", date, err)
        }
        holds, err := s.holds.FindHoldsByDate(ctx, date)
        if err != nil {
            log.Printf("snapshot: holds for %s unavailable, starting without them: %v", date, err)
            holds = nil
        }
        s.seats.Restore(date, seatIDs, reserved, holds)
        s.mu.Lock()
        delete(s.last, date)
        s.mu.Unlock()
    }

    if s.qstore != nil {
        entries, err := s.qstore.FindQueueSnapshot(ctx)
        if err != nil {
            log.Printf("snapshot: queue unavailable, starting empty: %v", err)
        } else {
            s.queue.Restore(entries)
        }
    }
    return dates, nil
}

func fingerprint(holds []model.Hold) string {
    ids := make([]string, len(holds))
    for i, h := range holds {
        ids[i] = h.ID
    }
    sort.Strings(ids)
    return strings.Join(ids, ",")
}
