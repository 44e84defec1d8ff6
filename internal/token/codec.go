// Package token signs and verifies the capability tokens handed to clients
// by the admission engine: queue tokens (proof of a place in the waiting
// room) and hold tokens (proof of a live seat hold).  Tokens are HS256 JWTs.
// Each kind is signed with its own key derived from a single secret, so a
// queue token can never be replayed as a hold token or vice versa.
package token

import (
    "crypto/sha256"
    "errors"
    "fmt"
    "io"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "golang.org/x/crypto/hkdf"

    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/model"
)

const issuer = "seat-admission"

func init() {
    // Token expiries follow entry and hold expiries to the millisecond.
    jwt.TimePrecision = time.Millisecond
}

// QueueClaims is the verified content of a queue token.
type QueueClaims struct {
    SubjectID string
    Position  int
    IssuedAt  time.Time
    ExpiresAt time.Time
}

type queueJWT struct {
    Position int `json:"pos"`
    jwt.RegisteredClaims
}

type holdJWT struct {
    HoldID    string `json:"hid"`
    Date      string `json:"date"`
    SeatID    string `json:"seat"`
    HeldAt    int64  `json:"held_ms"`
    ReleaseAt int64  `json:"rel_ms"`
    jwt.RegisteredClaims
}

// Codec issues and verifies tokens.  It holds no mutable state and is safe
// for concurrent use.
type Codec struct {
    queueKey []byte
    holdKey  []byte
    clock    clock.Clock
}

// NewCodec derives the per-kind signing keys from secret.  The secret must
// be non-empty.
func NewCodec(secret string, clk clock.Clock) (*Codec, error) {
    if secret == "" {
        return nil, errors.New("token: empty secret")
    }
    if clk == nil {
        clk = clock.Real()
    }
    qk, err := deriveKey(secret, "queue-token")
    if err != nil {
        return nil, err
    }
    hk, err := deriveKey(secret, "hold-token")
    if err != nil {
        return nil, err
    }
    return &Codec{queueKey: qk, holdKey: hk, clock: clk}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
    key := make([]byte, 32)
    r := hkdf.New(sha256.New, []byte(secret), []byte(issuer), []byte(info))
    if _, err := io.ReadFull(r, key); err != nil {
        return nil, fmt.Errorf("token: derive %s key: %w", info, err)
    }
    return key, nil
}

// IssueQueueToken signs a queue token for subjectID at position that
// expires at now+ttl, cut to the millisecond.  It returns the token and
// its expiry.
func (c *Codec) IssueQueueToken(subjectID string, position int, ttl time.Duration) (string, time.Time, error) {
    now := c.clock.Now()
    exp := now.Add(ttl)
    claims := queueJWT{
        Position: position,
        RegisteredClaims: jwt.RegisteredClaims{
            Issuer:    issuer,
            Subject:   subjectID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.queueKey)
    if err != nil {
        return "", time.Time{}, fmt.Errorf("token: sign queue token: %w", err)
    }
    return signed, claims.ExpiresAt.Time, nil
}

// VerifyQueueToken checks signature and expiry of a queue token.
func (c *Codec) VerifyQueueToken(raw string) (QueueClaims, error) {
    var claims queueJWT
    if err := c.parse(raw, &claims, c.queueKey); err != nil {
        return QueueClaims{}, err
    }
    if claims.Subject == "" || claims.ExpiresAt == nil {
        return QueueClaims{}, model.ErrInvalidToken
    }
    out := QueueClaims{
        SubjectID: claims.Subject,
        Position:  claims.Position,
        ExpiresAt: claims.ExpiresAt.Time,
    }
    if claims.IssuedAt != nil {
        out.IssuedAt = claims.IssuedAt.Time
    }
    return out, nil
}

// IssueHoldToken signs a hold token mirroring h.  The token expires when
// the hold is released.
func (c *Codec) IssueHoldToken(h model.HoldClaims) (string, error) {
    claims := holdJWT{
        HoldID:    h.HoldID,
        Date:      h.Date,
        SeatID:    h.SeatID,
        HeldAt:    h.HeldAt.UnixMilli(),
        ReleaseAt: h.ReleaseAt.UnixMilli(),
        RegisteredClaims: jwt.RegisteredClaims{
            Issuer:    issuer,
            Subject:   h.HolderID,
            IssuedAt:  jwt.NewNumericDate(c.clock.Now()),
            ExpiresAt: jwt.NewNumericDate(h.ReleaseAt),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.holdKey)
    if err != nil {
        return "", fmt.Errorf("token: sign hold token: %w", err)
    }
    return signed, nil
}

// VerifyHoldToken checks signature and expiry of a hold token and returns
// the hold it describes.
func (c *Codec) VerifyHoldToken(raw string) (model.HoldClaims, error) {
    var claims holdJWT
    if err := c.parse(raw, &claims, c.holdKey); err != nil {
        return model.HoldClaims{}, err
    }
    if claims.Subject == "" || claims.HoldID == "" || claims.SeatID == "" || claims.Date == "" {
        return model.HoldClaims{}, model.ErrInvalidToken
    }
    return model.HoldClaims{
        HoldID:    claims.HoldID,
        HolderID:  claims.Subject,
        Date:      claims.Date,
        SeatID:    claims.SeatID,
        HeldAt:    time.UnixMilli(claims.HeldAt).UTC(),
        ReleaseAt: time.UnixMilli(claims.ReleaseAt).UTC(),
    }, nil
}

// parse verifies raw into claims.  Signature problems always win over
// expiry so that a forged token is never reported as merely expired.
func (c *Codec) parse(raw string, claims jwt.Claims, key []byte) error {
    if raw == "" {
        return model.ErrInvalidToken
    }
    _, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, model.ErrInvalidToken
        }
        return key, nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithIssuer(issuer),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(c.clock.Now),
    )
    switch {
    case err == nil:
        return nil
    case errors.Is(err, jwt.ErrTokenMalformed),
        errors.Is(err, jwt.ErrTokenSignatureInvalid),
        errors.Is(err, jwt.ErrTokenUnverifiable):
        return model.ErrInvalidToken
    case errors.Is(err, jwt.ErrTokenExpired):
        return model.ErrExpired
    default:
        return model.ErrInvalidToken
    }
}
