package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth validates the identity provider's Bearer access token and stores
// its subject and role under CtxSubjectID and CtxRole.  The subject is the
// opaque SubjectID the admission engine keys queue entries and holds on.
// Only HS256 tokens signed with secret are accepted.
func JWTAuth(secret string) echo.MiddlewareFunc {
    key := []byte(secret)
    parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "UNAUTHENTICATED"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            claims := jwt.MapClaims{}
            tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
                return key, nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid access token", "code": "UNAUTHENTICATED"})
            }

            // Subject is mandatory; every engine operation is keyed on it.
            sub, err := claims.GetSubject()
            if err != nil || sub == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "access token has no subject", "code": "UNAUTHENTICATED"})
            }
            c.Set(CtxSubjectID, sub)
            if role, ok := claims["role"].(string); ok {
                c.Set(CtxRole, role)
            }
            return next(c)
        }
    }
}
