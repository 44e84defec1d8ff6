package token

import (
    "errors"
    "strings"
    "testing"
    "time"

    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/model"
)

var epoch = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func newCodec(t *testing.T, secret string, clk clock.Clock) *Codec {
    t.Helper()
    c, err := NewCodec(secret, clk)
    if err != nil {
        t.Fatalf("NewCodec: %v", err)
    }
    return c
}

func TestQueueTokenRoundTrip(t *testing.T) {
    clk := clock.NewFake(epoch)
    c := newCodec(t, "s3cret", clk)

    raw, exp, err := c.IssueQueueToken("u1", 7, 5*time.Minute)
    if err != nil {
        t.Fatalf("issue: %v", err)
    }
    if !exp.Equal(epoch.Add(5 * time.Minute)) {
        t.Fatalf("expiry = %v, want now+ttl", exp)
    }
    got, err := c.VerifyQueueToken(raw)
    if err != nil {
        t.Fatalf("verify: %v", err)
    }
    if got.SubjectID != "u1" || got.Position != 7 {
        t.Fatalf("claims = %+v", got)
    }
    if !got.ExpiresAt.Equal(exp) {
        t.Fatalf("claims expiry = %v, want %v", got.ExpiresAt, exp)
    }
}

func TestQueueTokenExpiry(t *testing.T) {
    clk := clock.NewFake(epoch)
    c := newCodec(t, "s3cret", clk)
    raw, _, err := c.IssueQueueToken("u1", 0, time.Minute)
    if err != nil {
        t.Fatal(err)
    }

    clk.Advance(59 * time.Second)
    if _, err := c.VerifyQueueToken(raw); err != nil {
        t.Fatalf("before expiry: %v", err)
    }
    clk.Advance(time.Second)
    if _, err := c.VerifyQueueToken(raw); !errors.Is(err, model.ErrExpired) {
        t.Fatalf("at expiry: err = %v, want ErrExpired", err)
    }
}

func TestExpiryKeepsMilliseconds(t *testing.T) {
    clk := clock.NewFake(epoch.Add(500 * time.Millisecond))
    c := newCodec(t, "s3cret", clk)
    raw, exp, err := c.IssueQueueToken("u1", 0, time.Minute)
    if err != nil {
        t.Fatal(err)
    }
    if !exp.Equal(epoch.Add(time.Minute + 500*time.Millisecond)) {
        t.Fatalf("expiry = %v", exp)
    }
    hold, err := c.IssueHoldToken(model.HoldClaims{
        HoldID:    "h-1",
        HolderID:  "u1",
        Date:      "2024-07-01",
        SeatID:    "S1",
        HeldAt:    epoch.Add(500 * time.Millisecond),
        ReleaseAt: epoch.Add(time.Minute + 500*time.Millisecond),
    })
    if err != nil {
        t.Fatal(err)
    }

    clk.Advance(time.Minute - time.Millisecond)
    if _, err := c.VerifyQueueToken(raw); err != nil {
        t.Fatalf("queue token 1ms before expiry: %v", err)
    }
    if _, err := c.VerifyHoldToken(hold); err != nil {
        t.Fatalf("hold token 1ms before release: %v", err)
    }
    clk.Advance(time.Millisecond)
    if _, err := c.VerifyQueueToken(raw); !errors.Is(err, model.ErrExpired) {
        t.Fatalf("queue token at expiry: err = %v", err)
    }
    if _, err := c.VerifyHoldToken(hold); !errors.Is(err, model.ErrExpired) {
        t.Fatalf("hold token at release: err = %v", err)
    }
}

func TestRejectsForeignAndTamperedTokens(t *testing.T) {
    clk := clock.NewFake(epoch)
    c := newCodec(t, "s3cret", clk)
    other := newCodec(t, "another-secret", clk)

    raw, _, err := other.IssueQueueToken("u1", 0, time.Minute)
    if err != nil {
        t.Fatal(err)
    }
    good, _, err := c.IssueQueueToken("u1", 0, time.Minute)
    if err != nil {
        t.Fatal(err)
    }
    parts := strings.Split(good, ".")
    tampered := parts[0] + "." + parts[1] + "x." + parts[2]

    cases := map[string]string{
        "empty":          "",
        "garbage":        "not-a-token",
        "foreign secret": raw,
        "tampered":       tampered,
    }
    for name, tok := range cases {
        t.Run(name, func(t *testing.T) {
            if _, err := c.VerifyQueueToken(tok); !errors.Is(err, model.ErrInvalidToken) {
                t.Fatalf("err = %v, want ErrInvalidToken", err)
            }
        })
    }
}

func TestForgedExpiredTokenIsInvalidNotExpired(t *testing.T) {
    clk := clock.NewFake(epoch)
    c := newCodec(t, "s3cret", clk)
    other := newCodec(t, "another-secret", clk)
    raw, _, err := other.IssueQueueToken("u1", 0, time.Minute)
    if err != nil {
        t.Fatal(err)
    }
    clk.Advance(time.Hour)
    if _, err := c.VerifyQueueToken(raw); !errors.Is(err, model.ErrInvalidToken) {
        t.Fatalf("err = %v, want ErrInvalidToken", err)
    }
}

func TestHoldTokenRoundTripAndKindSeparation(t *testing.T) {
    clk := clock.NewFake(epoch)
    c := newCodec(t, "s3cret", clk)
    hold := model.HoldClaims{
        HoldID:    "h-1",
        HolderID:  "u1",
        Date:      "2024-07-01",
        SeatID:    "S7",
        HeldAt:    epoch.Add(250 * time.Millisecond),
        ReleaseAt: epoch.Add(5*time.Minute + 250*time.Millisecond),
    }
    raw, err := c.IssueHoldToken(hold)
    if err != nil {
        t.Fatal(err)
    }
    got, err := c.VerifyHoldToken(raw)
    if err != nil {
        t.Fatalf("verify: %v", err)
    }
    live := model.Hold{ID: "h-1", HolderID: "u1", Date: "2024-07-01", SeatID: "S7", HeldAt: hold.HeldAt, ReleaseAt: hold.ReleaseAt}
    if !got.Matches(live) {
        t.Fatalf("claims %+v do not match hold %+v", got, live)
    }

    // A hold token is not a queue token and vice versa.
    if _, err := c.VerifyQueueToken(raw); !errors.Is(err, model.ErrInvalidToken) {
        t.Fatalf("hold token as queue token: err = %v", err)
    }
    q, _, err := c.IssueQueueToken("u1", 0, time.Minute)
    if err != nil {
        t.Fatal(err)
    }
    if _, err := c.VerifyHoldToken(q); !errors.Is(err, model.ErrInvalidToken) {
        t.Fatalf("queue token as hold token: err = %v", err)
    }
}

func TestNewCodecRequiresSecret(t *testing.T) {
    if _, err := NewCodec("", clock.Real()); err == nil {
        t.Fatal("expected error for empty secret")
    }
}
