package handler

import (
    "net/http"
    "time"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"
)

// StreamInterval is how often the queue stream pushes a status frame.
var StreamInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
    ReadBufferSize:  512,
    WriteBufferSize: 1024,
    CheckOrigin:     func(*http.Request) bool { return true },
}

// streamFrame is one message on the queue stream.  Exactly one of Ticket
// or Error is set.
type streamFrame struct {
    Type   string      `json:"type"` // "status" or "error"
    Ticket interface{} `json:"ticket,omitempty"`
    Error  string      `json:"error,omitempty"`
    Code   string      `json:"code,omitempty"`
}

// QueueStream handles GET /v1/queue/stream?token=<queue token>.  Browsers
// cannot set headers on a WebSocket handshake, so the queue token, which
// names its subject, is the only credential.  A status frame is pushed
// every StreamInterval until the subject is admitted, the token or entry
// lapses, or the client goes away.
func (h *AdmissionHandler) QueueStream(c echo.Context) error {
    raw := c.QueryParam("token")
    if raw == "" {
        return badRequest(c, "token query parameter is required")
    }
    // Reject bad tokens before upgrading so the client sees a plain status.
    first, err := h.Svc.QueueStatusForToken(c.Request().Context(), raw)
    if err != nil {
        return writeError(c, err)
    }

    ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
    if err != nil {
        return err
    }
    defer ws.Close()

    // Reader goroutine only watches for the client closing.
    gone := make(chan struct{})
    go func() {
        defer close(gone)
        for {
            if _, _, err := ws.NextReader(); err != nil {
                return
            }
        }
    }()

    ticker := time.NewTicker(StreamInterval)
    defer ticker.Stop()
    t := first
    for {
        _ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
        if err := ws.WriteJSON(streamFrame{Type: "status", Ticket: t}); err != nil {
            return nil
        }
        if t.Admitted {
            _ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "admitted"))
            return nil
        }
        select {
        case <-gone:
            return nil
        case <-c.Request().Context().Done():
            return nil
        case <-ticker.C:
        }
        // Each frame carries a refreshed token; poll with the newest one.
        t, err = h.Svc.QueueStatusForToken(c.Request().Context(), t.QueueToken)
        if err != nil {
            out := lookupError(err)
            _ = ws.WriteJSON(streamFrame{Type: "error", Error: out.msg, Code: out.code})
            _ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, out.code))
            return nil
        }
    }
}
