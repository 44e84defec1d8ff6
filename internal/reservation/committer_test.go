package reservation

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/model"
    "github.com/iliyamo/seat-admission/internal/seathold"
)

const day = "2024-07-01"

var epoch = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type memSaver struct {
    mu      sync.Mutex
    saved   []model.Reservation
    err     error
    gate    chan struct{} // when set, SaveReservation blocks until closed
    entered chan struct{}
}

func (m *memSaver) SaveReservation(ctx context.Context, r model.Reservation) error {
    if m.entered != nil {
        close(m.entered)
    }
    if m.gate != nil {
        <-m.gate
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.err != nil {
        return m.err
    }
    m.saved = append(m.saved, r)
    return nil
}

func (m *memSaver) count() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return len(m.saved)
}

func setup(t *testing.T) (*seathold.Store, *memSaver, *Committer, *clock.Fake) {
    t.Helper()
    clk := clock.NewFake(epoch)
    store := seathold.New(5*time.Minute, clk)
    store.AddDate(day, []string{"S1", "S2", "S3", "S7"})
    saver := &memSaver{}
    return store, saver, New(store, saver, clk), clk
}

func seatStatus(t *testing.T, s *seathold.Store, seat string) model.SeatRecord {
    t.Helper()
    rec, err := s.Seat(day, seat)
    if err != nil {
        t.Fatal(err)
    }
    return rec
}

func TestCommitReservesSeat(t *testing.T) {
    store, saver, c, clk := setup(t)
    claims, err := store.Hold(day, "S7", "u1")
    if err != nil {
        t.Fatal(err)
    }
    clk.Advance(time.Minute)

    res, err := c.Commit(context.Background(), day, "S7", "u1", claims)
    if err != nil {
        t.Fatalf("commit: %v", err)
    }
    if res.SeatID != "S7" || res.Date != day || res.SubjectID != "u1" || res.ID == "" {
        t.Fatalf("reservation = %+v", res)
    }
    if !res.CommittedAt.Equal(clk.Now()) {
        t.Fatalf("committed at = %v", res.CommittedAt)
    }
    if saver.count() != 1 {
        t.Fatalf("saved = %d", saver.count())
    }
    if rec := seatStatus(t, store, "S7"); rec.Status != model.SeatReserved || rec.Hold != nil {
        t.Fatalf("S7 = %+v", rec)
    }
    if _, err := store.Hold(day, "S7", "u2"); !errors.Is(err, model.ErrSeatUnavailable) {
        t.Fatalf("hold on reserved seat: %v", err)
    }
    if _, err := c.Commit(context.Background(), day, "S7", "u1", claims); !errors.Is(err, model.ErrHoldMismatch) {
        t.Fatalf("second commit: %v", err)
    }
    if saver.count() != 1 {
        t.Fatal("second commit created a reservation")
    }
}

func TestCommitRejectsStaleOrForeignClaims(t *testing.T) {
    store, saver, c, clk := setup(t)
    claims, _ := store.Hold(day, "S1", "u1")

    foreign := claims
    foreign.HolderID = "u2"
    otherSeat := claims
    otherSeat.SeatID = "S2"
    wrongID := claims
    wrongID.HoldID = "forged"
    shifted := claims
    shifted.ReleaseAt = claims.ReleaseAt.Add(time.Hour)

    cases := []struct {
        name   string
        seat   string
        holder string
        claims model.HoldClaims
    }{
        {"different holder", "S1", "u2", claims},
        {"claims for another holder", "S1", "u1", foreign},
        {"claims for another seat", "S1", "u1", otherSeat},
        {"forged hold id", "S1", "u1", wrongID},
        {"altered release", "S1", "u1", shifted},
        {"seat not held", "S2", "u1", claims},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            before := seatStatus(t, store, tc.seat)
            if _, err := c.Commit(context.Background(), day, tc.seat, tc.holder, tc.claims); !errors.Is(err, model.ErrHoldMismatch) {
                t.Fatalf("err = %v, want ErrHoldMismatch", err)
            }
            after := seatStatus(t, store, tc.seat)
            if before.Status != after.Status {
                t.Fatalf("seat mutated: %s -> %s", before.Status, after.Status)
            }
        })
    }

    // A hold stolen back after expiry invalidates the original claims.
    clk.Advance(5 * time.Minute)
    if _, err := store.Hold(day, "S1", "u2"); err != nil {
        t.Fatal(err)
    }
    if _, err := c.Commit(context.Background(), day, "S1", "u1", claims); !errors.Is(err, model.ErrHoldMismatch) {
        t.Fatalf("stolen hold: %v", err)
    }
    if saver.count() != 0 {
        t.Fatal("reservation created for mismatched hold")
    }
}

func TestCommitExpiredHold(t *testing.T) {
    store, saver, c, clk := setup(t)
    claims, _ := store.Hold(day, "S3", "u1")
    clk.Advance(5 * time.Minute)

    if _, err := c.Commit(context.Background(), day, "S3", "u1", claims); !errors.Is(err, model.ErrHoldExpired) {
        t.Fatalf("err = %v, want ErrHoldExpired", err)
    }
    rec := seatStatus(t, store, "S3")
    if rec.Status != model.SeatHeld || rec.Hold == nil || rec.Hold.ID != claims.HoldID {
        t.Fatalf("expired commit mutated seat: %+v", rec)
    }
    if saver.count() != 0 {
        t.Fatal("reservation created for expired hold")
    }
}

func TestStoreFailureLeavesSeatHeld(t *testing.T) {
    store, saver, c, _ := setup(t)
    claims, _ := store.Hold(day, "S1", "u1")
    saver.err = errors.New("db down")

    if _, err := c.Commit(context.Background(), day, "S1", "u1", claims); err == nil || !errors.Is(err, saver.err) {
        t.Fatalf("err = %v", err)
    }
    rec := seatStatus(t, store, "S1")
    if rec.Status != model.SeatHeld || rec.Hold.HolderID != "u1" {
        t.Fatalf("seat after failed save = %+v", rec)
    }

    saver.err = nil
    if _, err := c.Commit(context.Background(), day, "S1", "u1", claims); err != nil {
        t.Fatalf("retry: %v", err)
    }
    if rec := seatStatus(t, store, "S1"); rec.Status != model.SeatReserved {
        t.Fatalf("seat after retry = %+v", rec)
    }
}

func TestSweepDuringSlowCommitDoesNotRelease(t *testing.T) {
    store, saver, c, clk := setup(t)
    claims, _ := store.Hold(day, "S2", "u1")
    saver.gate = make(chan struct{})
    saver.entered = make(chan struct{})

    done := make(chan error, 1)
    go func() {
        _, err := c.Commit(context.Background(), day, "S2", "u1", claims)
        done <- err
    }()
    <-saver.entered

    // The hold lapses while the durable write is in flight.
    clk.Advance(10 * time.Minute)
    if ok, _ := store.ReleaseIfExpired(day, "S2"); ok {
        t.Fatal("sweep released a committing hold")
    }
    if _, err := store.Hold(day, "S2", "u2"); !errors.Is(err, model.ErrSeatUnavailable) {
        t.Fatalf("hold during commit: %v", err)
    }
    if _, err := c.Commit(context.Background(), day, "S2", "u1", claims); !errors.Is(err, model.ErrCommitInProgress) {
        t.Fatalf("concurrent commit: %v", err)
    }

    close(saver.gate)
    if err := <-done; err != nil {
        t.Fatalf("commit: %v", err)
    }
    if rec := seatStatus(t, store, "S2"); rec.Status != model.SeatReserved {
        t.Fatalf("S2 = %+v", rec)
    }
}
