package repository

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "github.com/iliyamo/seat-admission/internal/model"
)

// ReservationRepo persists committed reservations.  Rows are written once
// and never updated by the engine.  All timestamps are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// SaveReservation inserts r and returns once the row is committed.  A row
// already present for the same date and seat yields ErrConflict.
func (r *ReservationRepo) SaveReservation(ctx context.Context, res model.Reservation) error {
    const q = `INSERT INTO reservations (id, date, seat_id, subject_id, committed_at) VALUES (?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q, res.ID, res.Date, res.SeatID, res.SubjectID, res.CommittedAt.UTC())
    if err != nil {
        if isDuplicate(err) {
            return fmt.Errorf("reservation %s/%s: %w", res.Date, res.SeatID, ErrConflict)
        }
        return err
    }
    return nil
}

// ReservedSeatIDs returns the seats on date that already have a reservation.
func (r *ReservationRepo) ReservedSeatIDs(ctx context.Context, date string) ([]string, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT seat_id FROM reservations WHERE date = ?`, date)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []string
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        out = append(out, id)
    }
    return out, rows.Err()
}

// ListBySubject returns a subject's reservations, newest first.
func (r *ReservationRepo) ListBySubject(ctx context.Context, subjectID string) ([]model.Reservation, error) {
    const q = `SELECT id, date, seat_id, subject_id, committed_at
               FROM reservations
               WHERE subject_id = ?
               ORDER BY committed_at DESC, id`
    rows, err := r.db.QueryContext(ctx, q, subjectID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Reservation{}
    for rows.Next() {
        var (
            res  model.Reservation
            date time.Time
        )
        if err := rows.Scan(&res.ID, &date, &res.SeatID, &res.SubjectID, &res.CommittedAt); err != nil {
            return nil, err
        }
        res.Date = date.Format(dateLayout)
        res.CommittedAt = res.CommittedAt.UTC()
        out = append(out, res)
    }
    return out, rows.Err()
}
