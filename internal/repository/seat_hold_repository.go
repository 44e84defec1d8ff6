package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/seat-admission/internal/model"
)

// SeatHoldRepo stores the latest snapshot of live holds per date.  Holds
// are owned by the in-memory seat table; this table only lets a restarted
// process pick them back up.
type SeatHoldRepo struct {
    db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

// ReplaceHoldsForDate swaps the stored holds of date for holds in one
// transaction, so a reader never observes a half-written snapshot.
func (r *SeatHoldRepo) ReplaceHoldsForDate(ctx context.Context, date string, holds []model.Hold) (err error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        }
    }()

    if _, err = tx.ExecContext(ctx, `DELETE FROM seat_holds WHERE date = ?`, date); err != nil {
        return err
    }
    if len(holds) > 0 {
        var sb strings.Builder
        sb.WriteString(`INSERT INTO seat_holds (hold_id, date, seat_id, holder_id, held_at, release_at) VALUES `)
        args := make([]interface{}, 0, len(holds)*6)
        for i, h := range holds {
            if i > 0 {
                sb.WriteString(",")
            }
            sb.WriteString("(?, ?, ?, ?, ?, ?)")
            args = append(args, h.ID, date, h.SeatID, h.HolderID, toMillis(h.HeldAt), toMillis(h.ReleaseAt))
        }
        if _, err = tx.ExecContext(ctx, sb.String(), args...); err != nil {
            return err
        }
    }
    return tx.Commit()
}

// toMillis cuts t to the DATETIME(3) precision of seat_holds.  The driver
// sends microseconds and MySQL would round them.
func toMillis(t time.Time) time.Time {
    return t.UTC().Truncate(time.Millisecond)
}

// FindHoldsByDate returns the stored holds of date, lapsed ones included.
// Callers decide what is still live.
func (r *SeatHoldRepo) FindHoldsByDate(ctx context.Context, date string) ([]model.Hold, error) {
    const q = `SELECT hold_id, seat_id, holder_id, held_at, release_at FROM seat_holds WHERE date = ?`
    rows, err := r.db.QueryContext(ctx, q, date)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Hold
    for rows.Next() {
        h := model.Hold{Date: date}
        if err := rows.Scan(&h.ID, &h.SeatID, &h.HolderID, &h.HeldAt, &h.ReleaseAt); err != nil {
            return nil, err
        }
        h.HeldAt, h.ReleaseAt = h.HeldAt.UTC(), h.ReleaseAt.UTC()
        out = append(out, h)
    }
    return out, rows.Err()
}
