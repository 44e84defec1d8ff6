package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement on startup.  Every statement is
// idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS seat_dates (
		date        DATE         NOT NULL,
		seat_id     VARCHAR(32)  NOT NULL,
		position    INT UNSIGNED NOT NULL,
		PRIMARY KEY (date, seat_id),
		KEY idx_seat_dates_order (date, position)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// One reservation per seat and date; the unique key is the last line
	// of defence against a double commit.
	`CREATE TABLE IF NOT EXISTS reservations (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		date         DATE         NOT NULL,
		seat_id      VARCHAR(32)  NOT NULL,
		subject_id   VARCHAR(191) NOT NULL,
		committed_at DATETIME(3)  NOT NULL,
		UNIQUE KEY uq_reservations_seat (date, seat_id),
		KEY idx_reservations_subject (subject_id, committed_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// Snapshot of live holds, rewritten per date by the sweeper.
	`CREATE TABLE IF NOT EXISTS seat_holds (
		hold_id    CHAR(36)     NOT NULL PRIMARY KEY,
		date       DATE         NOT NULL,
		seat_id    VARCHAR(32)  NOT NULL,
		holder_id  VARCHAR(191) NOT NULL,
		held_at    DATETIME(3)  NOT NULL,
		release_at DATETIME(3)  NOT NULL,
		UNIQUE KEY uq_seat_holds_seat (date, seat_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the admission tables if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
