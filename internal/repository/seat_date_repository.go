package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"
)

// SeatDateRepo is the seat catalogue: which dates are bookable and which
// seats each one has, in display order.
type SeatDateRepo struct {
    db *sql.DB
}

// NewSeatDateRepo returns a new SeatDateRepo bound to the provided database.
func NewSeatDateRepo(db *sql.DB) *SeatDateRepo { return &SeatDateRepo{db: db} }

// EnsureDate records seatIDs for date unless the date already has seats.
// It reports whether the date was created by this call.
func (r *SeatDateRepo) EnsureDate(ctx context.Context, date string, seatIDs []string) (bool, error) {
    var n int
    if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seat_dates WHERE date = ?`, date).Scan(&n); err != nil {
        return false, err
    }
    if n > 0 || len(seatIDs) == 0 {
        return false, nil
    }
    var sb strings.Builder
    sb.WriteString(`INSERT IGNORE INTO seat_dates (date, seat_id, position) VALUES `)
    args := make([]interface{}, 0, len(seatIDs)*3)
    for i, id := range seatIDs {
        if i > 0 {
            sb.WriteString(",")
        }
        sb.WriteString("(?, ?, ?)")
        args = append(args, date, id, i)
    }
    res, err := r.db.ExecContext(ctx, sb.String(), args...)
    if err != nil {
        return false, err
    }
    affected, _ := res.RowsAffected()
    return affected > 0, nil
}

// ListDates returns every catalogued date in ascending order.
func (r *SeatDateRepo) ListDates(ctx context.Context) ([]string, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT date FROM seat_dates ORDER BY date`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []string
    for rows.Next() {
        var d time.Time
        if err := rows.Scan(&d); err != nil {
            return nil, err
        }
        out = append(out, d.Format(dateLayout))
    }
    return out, rows.Err()
}

// SeatIDs returns the seats of date in display order, or ErrNotFound.
func (r *SeatDateRepo) SeatIDs(ctx context.Context, date string) ([]string, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT seat_id FROM seat_dates WHERE date = ? ORDER BY position`, date)
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
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(out) == 0 {
        return nil, ErrNotFound
    }
    return out, nil
}
