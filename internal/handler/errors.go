package handler

import (
    "errors"
    "log"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-admission/internal/model"
    "github.com/iliyamo/seat-admission/internal/service"
)

// apiError is the outward form of an engine error.  Codes are stable; a
// client keys its retry decision on them.
type apiError struct {
    status int
    code   string
    msg    string
}

var errorTable = []struct {
    err error
    out apiError
}{
    {model.ErrInvalidToken, apiError{http.StatusUnauthorized, "INVALID_TOKEN", "token is malformed or not signed by this service"}},
    {model.ErrExpired, apiError{http.StatusGone, "TOKEN_EXPIRED", "token expired; re-enter the queue"}},
    {model.ErrNotFound, apiError{http.StatusNotFound, "NOT_IN_QUEUE", "not in queue or queue entry expired"}},
    {model.ErrUnknownDate, apiError{http.StatusNotFound, "DATE_NOT_FOUND", "date not found"}},
    {model.ErrUnknownSeat, apiError{http.StatusNotFound, "SEAT_NOT_FOUND", "seat not found"}},
    {model.ErrNotAdmitted, apiError{http.StatusTooEarly, "NOT_ADMITTED", "not yet admitted; keep polling"}},
    {model.ErrSeatUnavailable, apiError{http.StatusConflict, "SEAT_UNAVAILABLE", "seat is held or reserved"}},
    {model.ErrHoldMismatch, apiError{http.StatusPreconditionFailed, "HOLD_MISMATCH", "hold token does not match the live hold"}},
    {model.ErrHoldExpired, apiError{http.StatusGone, "HOLD_EXPIRED", "hold expired"}},
    {model.ErrCommitInProgress, apiError{http.StatusLocked, "COMMIT_IN_PROGRESS", "hold is being committed"}},
    {service.ErrInvalidDate, apiError{http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD"}},
}

func lookupError(err error) apiError {
    for _, e := range errorTable {
        if errors.Is(err, e.err) {
            return e.out
        }
    }
    return apiError{http.StatusInternalServerError, "INTERNAL", "internal error"}
}

// writeError renders err as {"error", "code"} with its mapped status.
// Unmapped errors are logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
    out := lookupError(err)
    if out.status == http.StatusInternalServerError {
        log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
    }
    return c.JSON(out.status, echo.Map{"error": out.msg, "code": out.code})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "BAD_REQUEST"})
}
