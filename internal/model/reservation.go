package model

import "time"

// Reservation is the durable, terminal outcome of committing a hold.  Once
// created it is never modified through the admission engine.
//
// Fields:
//  ID          – random identifier assigned at commit.
//  SeatID      – seat that has been reserved.
//  Date        – date the seat belongs to (YYYY-MM-DD).
//  SubjectID   – subject who owns the reservation.
//  CommittedAt – when the hold was converted.
type Reservation struct {
    ID          string    `json:"id"`           // reservations.id
    SeatID      string    `json:"seat_id"`      // reservations.seat_id
    Date        string    `json:"date"`         // reservations.date
    SubjectID   string    `json:"subject_id"`   // reservations.subject_id
    CommittedAt time.Time `json:"committed_at"` // reservations.committed_at
}
