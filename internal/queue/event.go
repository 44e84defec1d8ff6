// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "fmt"
    "time"
)

// ReservationQueueName is the durable queue reservation events travel on.
const ReservationQueueName = "reservation.committed"

// ReservationCommittedEvent is published after a hold has been converted
// into a durable reservation.  Consumers get everything they need to log
// or notify without reading the reservations table.
type ReservationCommittedEvent struct {
    ReservationID string `json:"reservation_id"`
    SubjectID     string `json:"subject_id"`
    Date          string `json:"date"`
    SeatID        string `json:"seat_id"`
    CommittedAt   string `json:"committed_at"` // RFC3339, UTC
}

// NewReservationCommittedEvent builds the event for a committed seat.
func NewReservationCommittedEvent(reservationID, subjectID, date, seatID string, at time.Time) ReservationCommittedEvent {
    return ReservationCommittedEvent{
        ReservationID: reservationID,
        SubjectID:     subjectID,
        Date:          date,
        SeatID:        seatID,
        CommittedAt:   at.UTC().Format(time.RFC3339),
    }
}

// LogLine renders the event as one line of logs/reservations.log.
func (ev ReservationCommittedEvent) LogLine() string {
    return fmt.Sprintf("[%s] Reservation committed | reservation_id=%s | subject=%q | date=%s | seat=%s\n",
        ev.CommittedAt, ev.ReservationID, ev.SubjectID, ev.Date, ev.SeatID)
}
