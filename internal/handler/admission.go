package handler

import (
    "context"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-admission/internal/middleware"
    "github.com/iliyamo/seat-admission/internal/service"
)

// Header names carrying capability tokens.  The access token stays in
// Authorization; queue and hold tokens travel beside it.
const (
    HeaderQueueToken = "X-Queue-Token"
    HeaderHoldToken  = "X-Hold-Token"
)

// RouteDates is the cached date catalogue route.
const RouteDates = "/v1/dates"

// CacheInvalidator drops cached responses of routes whose data changed.
type CacheInvalidator interface {
    Invalidate(ctx context.Context, routes ...string) error
}

// AdmissionHandler serves the waiting room, seat and reservation routes.
// Every authenticated method expects JWTAuth to have stored the subject.
// Cache may be nil.
type AdmissionHandler struct {
    Svc   *service.AdmissionService
    Cache CacheInvalidator
}

func NewAdmissionHandler(svc *service.AdmissionService) *AdmissionHandler {
    if svc == nil {
        panic("nil service passed to NewAdmissionHandler")
    }
    return &AdmissionHandler{Svc: svc}
}

// Enqueue handles POST /v1/queue.  201 for a new entry, 200 when the
// subject was already queued (its expiry is refreshed).
func (h *AdmissionHandler) Enqueue(c echo.Context) error {
    sub := middleware.SubjectID(c)
    if sub == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "UNAUTHENTICATED"})
    }
    t, err := h.Svc.Enqueue(c.Request().Context(), sub)
    if err != nil {
        return writeError(c, err)
    }
    status := http.StatusCreated
    if t.AlreadyQueued {
        status = http.StatusOK
    }
    return c.JSON(status, t)
}

// QueueStatus handles GET /v1/queue/status with the queue token in
// X-Queue-Token.  The response carries a refreshed token.
func (h *AdmissionHandler) QueueStatus(c echo.Context) error {
    raw := capability(c, HeaderQueueToken)
    if raw == "" {
        return badRequest(c, HeaderQueueToken+" header is required")
    }
    t, err := h.Svc.QueueStatus(c.Request().Context(), middleware.SubjectID(c), raw)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, t)
}

// HoldSeat handles POST /v1/dates/:date/seats/:seat/hold.
func (h *AdmissionHandler) HoldSeat(c echo.Context) error {
    raw := capability(c, HeaderQueueToken)
    if raw == "" {
        return badRequest(c, HeaderQueueToken+" header is required")
    }
    res, err := h.Svc.HoldSeat(c.Request().Context(), middleware.SubjectID(c), c.Param("date"), c.Param("seat"), raw)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// ReleaseHold handles DELETE /v1/holds with the hold token in X-Hold-Token.
func (h *AdmissionHandler) ReleaseHold(c echo.Context) error {
    raw := capability(c, HeaderHoldToken)
    if raw == "" {
        return badRequest(c, HeaderHoldToken+" header is required")
    }
    if err := h.Svc.ReleaseHold(c.Request().Context(), middleware.SubjectID(c), raw); err != nil {
        return writeError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Reserve handles POST /v1/dates/:date/seats/:seat/reserve.  A 201 means
// the reservation is durable.
func (h *AdmissionHandler) Reserve(c echo.Context) error {
    raw := capability(c, HeaderHoldToken)
    if raw == "" {
        return badRequest(c, HeaderHoldToken+" header is required")
    }
    res, err := h.Svc.CommitReservation(c.Request().Context(), middleware.SubjectID(c), c.Param("date"), c.Param("seat"), raw)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// MyReservations handles GET /v1/my-reservations.
func (h *AdmissionHandler) MyReservations(c echo.Context) error {
    list, err := h.Svc.ReservationsFor(c.Request().Context(), middleware.SubjectID(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

func capability(c echo.Context, header string) string {
    return strings.TrimSpace(c.Request().Header.Get(header))
}
