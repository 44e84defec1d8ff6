// Package repository holds the durable side of the admission engine:
// MySQL tables for seat dates, reservations and hold snapshots, and a
// Redis snapshot of the waiting room.  Higher layers compare the sentinels
// below with errors.Is.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a write collides with an existing row, such
// as a second reservation for the same seat and date.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// dateLayout is how dates travel between the engine and the DATE columns.
const dateLayout = "2006-01-02"

// isDuplicate reports whether err is MySQL's duplicate-key error (1062).
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}
