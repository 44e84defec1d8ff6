package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
    CtxSubjectID = "subject_id"
    CtxRole      = "role"
)

// SubjectID returns the authenticated subject stored by JWTAuth, or ""
// when the request is anonymous.
func SubjectID(c echo.Context) string {
    if s, ok := c.Get(CtxSubjectID).(string); ok {
        return s
    }
    return ""
}

// rateSubject is SubjectID with a placeholder for anonymous callers.
func rateSubject(c echo.Context) string {
    if s := SubjectID(c); s != "" {
        return s
    }
    return "anon"
}
