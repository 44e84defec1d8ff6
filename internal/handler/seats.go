package handler

import (
    "context"
    "log"
    "net/http"

    "github.com/labstack/echo/v4"
)

// Dates handles GET /v1/dates.
func (h *AdmissionHandler) Dates(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"dates": h.Svc.Dates(c.Request().Context())})
}

// AvailableSeats handles GET /v1/dates/:date/seats.  Lapsed holds are
// released before the list is built, so a seat never shows as taken by a
// hold that has already expired.
func (h *AdmissionHandler) AvailableSeats(c echo.Context) error {
    date := c.Param("date")
    seats, err := h.Svc.AvailableSeats(c.Request().Context(), date)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"date": date, "available": seats, "count": len(seats)})
}

// InitializeDate handles POST /v1/admin/dates/:date/initialize.  201 when
// the date was created, 200 when it already existed.
func (h *AdmissionHandler) InitializeDate(c echo.Context) error {
    date := c.Param("date")
    created, err := h.Svc.InitializeDate(c.Request().Context(), date)
    if err != nil {
        return writeError(c, err)
    }
    status := http.StatusOK
    if created {
        status = http.StatusCreated
        h.datesChanged(c.Request().Context())
    }
    return c.JSON(status, echo.Map{"date": date, "created": created, "seats": len(h.Svc.SeatIDs())})
}

func (h *AdmissionHandler) datesChanged(ctx context.Context) {
    if h.Cache == nil {
        return
    }
    if err := h.Cache.Invalidate(ctx, RouteDates); err != nil {
        log.Printf("handler: %v", err)
    }
}
