package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is the liveness probe.  It reports the tracked dates and the
// waiting-room length so an operator can tell a live but empty engine from
// one that failed to seed.
func (h *AdmissionHandler) Health(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{
        "status":       "ok",
        "dates":        len(h.Svc.Dates(c.Request().Context())),
        "queue_length": h.Svc.QueueLength(),
    })
}
