// Package seathold keeps the per-date seat table: which seats exist, which
// are available, which are temporarily held and by whom.  Every date has
// its own mutual-exclusion domain; hold, release and commit on a date are
// serialized through it so two holders racing for one seat can never both
// win.
package seathold

import (
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/model"
)

type seatState struct {
    status     model.SeatStatus
    hold       *model.Hold
    committing bool
}

type dateTable struct {
    mu      sync.Mutex
    order   []string
    seats   map[string]*seatState
    holders map[string]string // holderID -> seatID
}

// Store is the seat table for every tracked date.  It is created once per
// process and shared by handlers, the committer and the sweeper.
type Store struct {
    holdTTL time.Duration
    clock   clock.Clock
    newID   func() string

    mu    sync.RWMutex
    dates map[string]*dateTable
}

// New returns an empty store whose holds last holdTTL.
func New(holdTTL time.Duration, clk clock.Clock) *Store {
    if holdTTL <= 0 {
        holdTTL = 5 * time.Minute
    }
    if clk == nil {
        clk = clock.Real()
    }
    return &Store{
        holdTTL: holdTTL,
        clock:   clk,
        newID:   uuid.NewString,
        dates:   make(map[string]*dateTable),
    }
}

// AddDate starts tracking date with the given seats, all Available.  It
// returns false and changes nothing if the date is already tracked.
func (s *Store) AddDate(date string, seatIDs []string) bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.dates[date]; ok {
        return false
    }
    s.dates[date] = newDateTable(seatIDs)
    return true
}

func newDateTable(seatIDs []string) *dateTable {
    t := &dateTable{
        seats:   make(map[string]*seatState, len(seatIDs)),
        holders: make(map[string]string),
    }
    for _, id := range seatIDs {
        if _, dup := t.seats[id]; dup {
            continue
        }
        t.order = append(t.order, id)
        t.seats[id] = &seatState{status: model.SeatAvailable}
    }
    return t
}

// HasDate reports whether date is tracked.
func (s *Store) HasDate(date string) bool {
    _, ok := s.table(date)
    return ok
}

// Dates lists tracked dates in ascending order.
func (s *Store) Dates() []string {
    s.mu.RLock()
    out := make([]string, 0, len(s.dates))
    for d := range s.dates {
        out = append(out, d)
    }
    s.mu.RUnlock()
    sort.Strings(out)
    return out
}

func (s *Store) table(date string) (*dateTable, bool) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    t, ok := s.dates[date]
    return t, ok
}

// lock returns the date's table with its lock held.
func (s *Store) lock(date string) (*dateTable, error) {
    t, ok := s.table(date)
    if !ok {
        return nil, model.ErrUnknownDate
    }
    t.mu.Lock()
    return t, nil
}

// ListAvailable returns the Available seats for date in catalogue order.
// Lapsed holds found on the way are released first.
func (s *Store) ListAvailable(date string) ([]string, error) {
    t, err := s.lock(date)
    if err != nil {
        return nil, err
    }
    defer t.mu.Unlock()
    now := s.clock.Now()
    out := make([]string, 0, len(t.order))
    for _, id := range t.order {
        st := t.seats[id]
        t.releaseIfExpiredLocked(id, st, now)
        if st.status == model.SeatAvailable {
            out = append(out, id)
        }
    }
    return out, nil
}

// Hold places or refreshes a hold on seatID for holderID.  A seat held by
// another holder, reserved, or mid-commit is unavailable.  If the holder
// already holds a different seat on the same date, that seat goes back to
// Available in the same critical section.
func (s *Store) Hold(date, seatID, holderID string) (model.HoldClaims, error) {
    t, err := s.lock(date)
    if err != nil {
        return model.HoldClaims{}, err
    }
    defer t.mu.Unlock()

    st, ok := t.seats[seatID]
    if !ok {
        return model.HoldClaims{}, model.ErrUnknownSeat
    }
    now := s.clock.Now()
    t.releaseIfExpiredLocked(seatID, st, now)

    switch st.status {
    case model.SeatReserved:
        return model.HoldClaims{}, model.ErrSeatUnavailable
    case model.SeatHeld:
        if st.hold.HolderID != holderID {
            return model.HoldClaims{}, model.ErrSeatUnavailable
        }
        if st.committing {
            return model.HoldClaims{}, model.ErrCommitInProgress
        }
    }

    if prev, ok := t.holders[holderID]; ok && prev != seatID {
        ps := t.seats[prev]
        if ps.committing {
            return model.HoldClaims{}, model.ErrCommitInProgress
        }
        t.releaseLocked(prev, ps)
    }

    // Holds carry millisecond instants: tokens and the hold snapshot table
    // store no finer precision.
    heldAt := now.Truncate(time.Millisecond)
    h := &model.Hold{
        ID:        s.newID(),
        HolderID:  holderID,
        Date:      date,
        SeatID:    seatID,
        HeldAt:    heldAt,
        ReleaseAt: heldAt.Add(s.holdTTL),
    }
    st.status = model.SeatHeld
    st.hold = h
    t.holders[holderID] = seatID
    return h.Claims(), nil
}

// Release cancels the hold identified by holdID before it lapses.  A hold
// that is no longer live (already released, replaced or reserved) yields
// ErrHoldMismatch.
func (s *Store) Release(date, seatID, holderID, holdID string) error {
    t, err := s.lock(date)
    if err != nil {
        return err
    }
    defer t.mu.Unlock()
    st, ok := t.seats[seatID]
    if !ok {
        return model.ErrUnknownSeat
    }
    if st.status != model.SeatHeld || st.hold.HolderID != holderID || st.hold.ID != holdID {
        return model.ErrHoldMismatch
    }
    if st.committing {
        return model.ErrCommitInProgress
    }
    t.releaseLocked(seatID, st)
    return nil
}

// ReleaseIfExpired moves seatID from Held to Available if its hold has
// lapsed.  It reports whether this call performed the transition, so
// concurrent callers see true exactly once.
func (s *Store) ReleaseIfExpired(date, seatID string) (bool, error) {
    t, err := s.lock(date)
    if err != nil {
        return false, err
    }
    defer t.mu.Unlock()
    st, ok := t.seats[seatID]
    if !ok {
        return false, model.ErrUnknownSeat
    }
    return t.releaseIfExpiredLocked(seatID, st, s.clock.Now()), nil
}

// ExpiredHolds lists seats across all dates whose holds have lapsed and
// are not being committed.  The result is advisory; callers release each
// seat through ReleaseIfExpired, which re-checks.
func (s *Store) ExpiredHolds() []model.SeatRef {
    now := s.clock.Now()
    var out []model.SeatRef
    for _, date := range s.Dates() {
        t, ok := s.table(date)
        if !ok {
            continue
        }
        t.mu.Lock()
        for _, seatID := range t.holders {
            st := t.seats[seatID]
            if st.status == model.SeatHeld && !st.committing && st.hold.Expired(now) {
                out = append(out, model.SeatRef{Date: date, SeatID: seatID})
            }
        }
        t.mu.Unlock()
    }
    return out
}

// HeldBy returns the live, unexpired hold of holderID on date, if any.
func (s *Store) HeldBy(date, holderID string) (model.Hold, bool) {
    t, err := s.lock(date)
    if err != nil {
        return model.Hold{}, false
    }
    defer t.mu.Unlock()
    seatID, ok := t.holders[holderID]
    if !ok {
        return model.Hold{}, false
    }
    st := t.seats[seatID]
    if st.hold == nil || st.hold.Expired(s.clock.Now()) {
        return model.Hold{}, false
    }
    return *st.hold, true
}

// Seat returns a copy of the live record for seatID.
func (s *Store) Seat(date, seatID string) (model.SeatRecord, error) {
    t, err := s.lock(date)
    if err != nil {
        return model.SeatRecord{}, err
    }
    defer t.mu.Unlock()
    st, ok := t.seats[seatID]
    if !ok {
        return model.SeatRecord{}, model.ErrUnknownSeat
    }
    rec := model.SeatRecord{SeatID: seatID, Date: date, Status: st.status}
    if st.hold != nil {
        h := *st.hold
        rec.Hold = &h
    }
    return rec, nil
}

// Holds returns copies of every hold on date, including lapsed ones not
// yet swept.
func (s *Store) Holds(date string) ([]model.Hold, error) {
    t, err := s.lock(date)
    if err != nil {
        return nil, err
    }
    defer t.mu.Unlock()
    out := make([]model.Hold, 0, len(t.holders))
    for _, id := range t.order {
        if st := t.seats[id]; st.status == model.SeatHeld {
            out = append(out, *st.hold)
        }
    }
    return out, nil
}

// Restore rebuilds date from durable state: reserved seats become
// Reserved, live holds on Available seats are reinstated, lapsed holds and
// holds on unknown or reserved seats are dropped.  An existing table for
// date is replaced.
func (s *Store) Restore(date string, seatIDs, reserved []string, holds []model.Hold) {
    t := newDateTable(seatIDs)
    for _, id := range reserved {
        if st, ok := t.seats[id]; ok {
            st.status = model.SeatReserved
        }
    }
    now := s.clock.Now()
    for i := range holds {
        h := holds[i]
        st, ok := t.seats[h.SeatID]
        if !ok || st.status != model.SeatAvailable || h.Expired(now) || h.Date != date {
            continue
        }
        if _, taken := t.holders[h.HolderID]; taken {
            continue
        }
        st.status = model.SeatHeld
        st.hold = &h
        t.holders[h.HolderID] = h.SeatID
    }
    s.mu.Lock()
    s.dates[date] = t
    s.mu.Unlock()
}

func (t *dateTable) releaseIfExpiredLocked(seatID string, st *seatState, now time.Time) bool {
    if st.status != model.SeatHeld || st.committing || !st.hold.Expired(now) {
        return false
    }
    t.releaseLocked(seatID, st)
    return true
}

func (t *dateTable) releaseLocked(seatID string, st *seatState) {
    if st.hold != nil && t.holders[st.hold.HolderID] == seatID {
        delete(t.holders, st.hold.HolderID)
    }
    st.status = model.SeatAvailable
    st.hold = nil
    st.committing = false
}
