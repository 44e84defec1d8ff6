// Package reservation converts live seat holds into durable reservations.
// It is the only path that permanently consumes a seat.
package reservation

import (
    "context"
    "fmt"

    "github.com/google/uuid"

    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/model"
)

// Ledger is the seat table the committer drives.  *seathold.Store
// satisfies it.
type Ledger interface {
    BeginCommit(date, seatID, holderID string, claims model.HoldClaims) (model.Hold, error)
    CompleteCommit(date, seatID, holdID string) error
    AbortCommit(date, seatID, holdID string)
}

// Saver persists reservations durably.  SaveReservation must not return
// before the record is stored.
type Saver interface {
    SaveReservation(ctx context.Context, r model.Reservation) error
}

// Committer turns holds into reservations.
type Committer struct {
    ledger Ledger
    saver  Saver
    clock  clock.Clock
    newID  func() string
}

// New returns a Committer writing through saver.
func New(ledger Ledger, saver Saver, clk clock.Clock) *Committer {
    if clk == nil {
        clk = clock.Real()
    }
    return &Committer{ledger: ledger, saver: saver, clock: clk, newID: uuid.NewString}
}

// Commit re-validates claims against the live hold, persists a Reservation
// and marks the seat Reserved.  The seat lock is not held while the
// reservation is written; the hold is pinned as committing instead, so a
// concurrent sweep or hold cannot take it.  When the write fails the seat
// stays Held by the same holder and the commit may be retried.
func (c *Committer) Commit(ctx context.Context, date, seatID, holderID string, claims model.HoldClaims) (model.Reservation, error) {
    hold, err := c.ledger.BeginCommit(date, seatID, holderID, claims)
    if err != nil {
        return model.Reservation{}, err
    }
    res := model.Reservation{
        ID:          c.newID(),
        SeatID:      seatID,
        Date:        date,
        SubjectID:   holderID,
        CommittedAt: c.clock.Now(),
    }
    if err := c.saver.SaveReservation(ctx, res); err != nil {
        c.ledger.AbortCommit(date, seatID, hold.ID)
        return model.Reservation{}, fmt.Errorf("save reservation: %w", err)
    }
    if err := c.ledger.CompleteCommit(date, seatID, hold.ID); err != nil {
        // The reservation is durable; the seat table is rebuilt from it on restart.
        return res, fmt.Errorf("complete commit: %w", err)
    }
    return res, nil
}
