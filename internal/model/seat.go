package model

import "time"

// SeatStatus is the lifecycle state of one seat on one date.  A seat is
// always in exactly one of these states.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "AVAILABLE"
    SeatHeld      SeatStatus = "HELD"
    SeatReserved  SeatStatus = "RESERVED"
)

// Hold is a time-boxed exclusive claim on a seat.  It is not durable.
//
// Fields:
//  ID        – random identifier minted for every hold (a refresh mints a new one).
//  HolderID  – subject holding the seat.
//  Date      – date the seat belongs to (YYYY-MM-DD).
//  SeatID    – seat being held.
//  HeldAt    – when the hold was placed.
//  ReleaseAt – instant at which the hold lapses.
type Hold struct {
    ID        string    `json:"hold_id"`
    HolderID  string    `json:"holder_id"`
    Date      string    `json:"date"`
    SeatID    string    `json:"seat_id"`
    HeldAt    time.Time `json:"held_at"`
    ReleaseAt time.Time `json:"release_at"`
}

// Expired reports whether the hold has lapsed at now.
func (h Hold) Expired(now time.Time) bool {
    return !now.Before(h.ReleaseAt)
}

// Claims returns the capability claims that mirror this hold.
func (h Hold) Claims() HoldClaims {
    return HoldClaims{
        HoldID:    h.ID,
        HolderID:  h.HolderID,
        Date:      h.Date,
        SeatID:    h.SeatID,
        HeldAt:    h.HeldAt,
        ReleaseAt: h.ReleaseAt,
    }
}

// HoldClaims are the fields carried by a hold token.  At commit time they
// must equal the live hold field for field.
type HoldClaims struct {
    HoldID    string    `json:"hold_id"`
    HolderID  string    `json:"holder_id"`
    Date      string    `json:"date"`
    SeatID    string    `json:"seat_id"`
    HeldAt    time.Time `json:"held_at"`
    ReleaseAt time.Time `json:"release_at"`
}

// Matches reports whether the claims describe exactly the hold h.  Instants
// are compared at millisecond precision, which is what tokens carry.
func (c HoldClaims) Matches(h Hold) bool {
    return c.HoldID == h.ID &&
        c.HolderID == h.HolderID &&
        c.Date == h.Date &&
        c.SeatID == h.SeatID &&
        c.HeldAt.UnixMilli() == h.HeldAt.UnixMilli() &&
        c.ReleaseAt.UnixMilli() == h.ReleaseAt.UnixMilli()
}

// SeatRecord is the per-date state of a seat.  Hold is non-nil exactly
// when Status is SeatHeld.
type SeatRecord struct {
    SeatID string     `json:"seat_id"`
    Date   string     `json:"date"`
    Status SeatStatus `json:"status"`
    Hold   *Hold      `json:"hold,omitempty"`
}

// SeatRef addresses one seat on one date.
type SeatRef struct {
    Date   string
    SeatID string
}
