package seathold

import (
    "errors"
    "fmt"
    "sync"
    "sync/atomic"
    "testing"
    "time"

    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/model"
)

const day = "2024-07-01"

var epoch = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func seats(n int) []string {
    out := make([]string, n)
    for i := range out {
        out[i] = fmt.Sprintf("S%d", i+1)
    }
    return out
}

func newStore(t *testing.T) (*Store, *clock.Fake) {
    t.Helper()
    clk := clock.NewFake(epoch)
    s := New(5*time.Minute, clk)
    if !s.AddDate(day, seats(10)) {
        t.Fatal("AddDate returned false")
    }
    return s, clk
}

func status(t *testing.T, s *Store, seat string) model.SeatStatus {
    t.Helper()
    rec, err := s.Seat(day, seat)
    if err != nil {
        t.Fatal(err)
    }
    if (rec.Status == model.SeatHeld) != (rec.Hold != nil) {
        t.Fatalf("%s: status %s with hold %v", seat, rec.Status, rec.Hold)
    }
    return rec.Status
}

func TestHoldAndUnavailable(t *testing.T) {
    s, _ := newStore(t)
    claims, err := s.Hold(day, "S7", "u1")
    if err != nil {
        t.Fatal(err)
    }
    if claims.HolderID != "u1" || claims.SeatID != "S7" || claims.Date != day || claims.HoldID == "" {
        t.Fatalf("claims = %+v", claims)
    }
    if !claims.ReleaseAt.Equal(epoch.Add(5 * time.Minute)) {
        t.Fatalf("release at = %v", claims.ReleaseAt)
    }
    if got := status(t, s, "S7"); got != model.SeatHeld {
        t.Fatalf("S7 = %s", got)
    }
    if _, err := s.Hold(day, "S7", "u2"); !errors.Is(err, model.ErrSeatUnavailable) {
        t.Fatalf("second holder: err = %v", err)
    }
    avail, err := s.ListAvailable(day)
    if err != nil {
        t.Fatal(err)
    }
    for _, id := range avail {
        if id == "S7" {
            t.Fatal("held seat listed as available")
        }
    }
    if len(avail) != 9 {
        t.Fatalf("available = %d, want 9", len(avail))
    }
}

func TestUnknownDateAndSeat(t *testing.T) {
    s, _ := newStore(t)
    if _, err := s.Hold("2030-01-01", "S1", "u1"); !errors.Is(err, model.ErrUnknownDate) {
        t.Fatalf("unknown date: %v", err)
    }
    if _, err := s.Hold(day, "S99", "u1"); !errors.Is(err, model.ErrUnknownSeat) {
        t.Fatalf("unknown seat: %v", err)
    }
    if s.AddDate(day, seats(3)) {
        t.Fatal("AddDate on tracked date returned true")
    }
}

func TestRefreshBySameHolder(t *testing.T) {
    s, clk := newStore(t)
    first, _ := s.Hold(day, "S1", "u1")
    clk.Advance(time.Minute)
    second, err := s.Hold(day, "S1", "u1")
    if err != nil {
        t.Fatal(err)
    }
    if second.HoldID == first.HoldID {
        t.Fatal("refresh kept the old hold id")
    }
    if !second.ReleaseAt.Equal(clk.Now().Add(5 * time.Minute)) {
        t.Fatalf("release at = %v", second.ReleaseAt)
    }
}

func TestOneHoldPerHolderPerDate(t *testing.T) {
    s, _ := newStore(t)
    if _, err := s.Hold(day, "S1", "u1"); err != nil {
        t.Fatal(err)
    }
    if _, err := s.Hold(day, "S2", "u1"); err != nil {
        t.Fatal(err)
    }
    if got := status(t, s, "S1"); got != model.SeatAvailable {
        t.Fatalf("prior hold not released: S1 = %s", got)
    }
    if got := status(t, s, "S2"); got != model.SeatHeld {
        t.Fatalf("S2 = %s", got)
    }
    holds, _ := s.Holds(day)
    if len(holds) != 1 {
        t.Fatalf("holds = %d, want 1", len(holds))
    }
}

func TestFailedHoldKeepsPriorHold(t *testing.T) {
    s, _ := newStore(t)
    _, _ = s.Hold(day, "S1", "u1")
    _, _ = s.Hold(day, "S2", "u2")
    if _, err := s.Hold(day, "S2", "u1"); !errors.Is(err, model.ErrSeatUnavailable) {
        t.Fatalf("err = %v", err)
    }
    if got := status(t, s, "S1"); got != model.SeatHeld {
        t.Fatalf("S1 = %s, prior hold lost on failed hold", got)
    }
}

func TestConcurrentHoldExactlyOneWins(t *testing.T) {
    for round := 0; round < 20; round++ {
        s, _ := newStore(t)
        const holders = 16
        var wins, losses int32
        var wg sync.WaitGroup
        start := make(chan struct{})
        for i := 0; i < holders; i++ {
            wg.Add(1)
            go func(i int) {
                defer wg.Done()
                <-start
                _, err := s.Hold(day, "S5", fmt.Sprintf("u%d", i))
                switch {
                case err == nil:
                    atomic.AddInt32(&wins, 1)
                case errors.Is(err, model.ErrSeatUnavailable):
                    atomic.AddInt32(&losses, 1)
                default:
                    t.Errorf("unexpected error: %v", err)
                }
            }(i)
        }
        close(start)
        wg.Wait()
        if wins != 1 || losses != holders-1 {
            t.Fatalf("round %d: wins=%d losses=%d", round, wins, losses)
        }
    }
}

func TestReleaseIfExpiredExactlyOnce(t *testing.T) {
    s, clk := newStore(t)
    _, _ = s.Hold(day, "S3", "u1")

    if ok, _ := s.ReleaseIfExpired(day, "S3"); ok {
        t.Fatal("released a live hold")
    }
    clk.Advance(5 * time.Minute)

    var released int32
    var wg sync.WaitGroup
    for i := 0; i < 10; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            ok, err := s.ReleaseIfExpired(day, "S3")
            if err != nil {
                t.Error(err)
            }
            if ok {
                atomic.AddInt32(&released, 1)
            }
        }()
    }
    wg.Wait()
    if released != 1 {
        t.Fatalf("released %d times, want 1", released)
    }
    if got := status(t, s, "S3"); got != model.SeatAvailable {
        t.Fatalf("S3 = %s", got)
    }
}

func TestLapsedHoldCanBeTakenBeforeSweep(t *testing.T) {
    s, clk := newStore(t)
    _, _ = s.Hold(day, "S3", "u1")
    clk.Advance(6 * time.Minute)
    if refs := s.ExpiredHolds(); len(refs) != 1 || refs[0].SeatID != "S3" {
        t.Fatalf("expired holds = %v", refs)
    }
    claims, err := s.Hold(day, "S3", "u2")
    if err != nil {
        t.Fatal(err)
    }
    if claims.HolderID != "u2" {
        t.Fatalf("holder = %s", claims.HolderID)
    }
    // u1 no longer owns a hold on the date, so holding elsewhere leaves S3 alone.
    if _, err := s.Hold(day, "S4", "u1"); err != nil {
        t.Fatal(err)
    }
    if got := status(t, s, "S3"); got != model.SeatHeld {
        t.Fatalf("S3 = %s", got)
    }
}

func TestExplicitRelease(t *testing.T) {
    s, _ := newStore(t)
    claims, _ := s.Hold(day, "S1", "u1")
    if err := s.Release(day, "S1", "u2", claims.HoldID); !errors.Is(err, model.ErrHoldMismatch) {
        t.Fatalf("foreign release: %v", err)
    }
    if err := s.Release(day, "S1", "u1", claims.HoldID); err != nil {
        t.Fatal(err)
    }
    if err := s.Release(day, "S1", "u1", claims.HoldID); !errors.Is(err, model.ErrHoldMismatch) {
        t.Fatalf("double release: %v", err)
    }
    if got := status(t, s, "S1"); got != model.SeatAvailable {
        t.Fatalf("S1 = %s", got)
    }
}

func TestRestore(t *testing.T) {
    s, clk := newStore(t)
    live := model.Hold{ID: "h1", HolderID: "u1", Date: day, SeatID: "S2", HeldAt: epoch, ReleaseAt: epoch.Add(5 * time.Minute)}
    lapsed := model.Hold{ID: "h2", HolderID: "u2", Date: day, SeatID: "S3", HeldAt: epoch.Add(-10 * time.Minute), ReleaseAt: epoch.Add(-5 * time.Minute)}
    onReserved := model.Hold{ID: "h3", HolderID: "u3", Date: day, SeatID: "S1", HeldAt: epoch, ReleaseAt: epoch.Add(5 * time.Minute)}
    clk.Advance(time.Minute)

    s.Restore(day, seats(4), []string{"S1"}, []model.Hold{live, lapsed, onReserved})

    want := map[string]model.SeatStatus{
        "S1": model.SeatReserved,
        "S2": model.SeatHeld,
        "S3": model.SeatAvailable,
        "S4": model.SeatAvailable,
    }
    for id, w := range want {
        if got := status(t, s, id); got != w {
            t.Errorf("%s = %s, want %s", id, got, w)
        }
    }
    if _, err := s.Hold(day, "S2", "u9"); !errors.Is(err, model.ErrSeatUnavailable) {
        t.Fatalf("restored hold not enforced: %v", err)
    }
}

func TestHoldInstantsSurviveMillisecondStorage(t *testing.T) {
    clk := clock.NewFake(epoch.Add(123600 * time.Microsecond))
    s := New(5*time.Minute, clk)
    s.AddDate(day, seats(3))

    claims, err := s.Hold(day, "S1", "u1")
    if err != nil {
        t.Fatal(err)
    }
    wantHeld := epoch.Add(123 * time.Millisecond)
    if !claims.HeldAt.Equal(wantHeld) || !claims.ReleaseAt.Equal(wantHeld.Add(5*time.Minute)) {
        t.Fatalf("claims = %+v", claims)
    }

    // A DATETIME(3) column rounds to the millisecond; restart from it.
    holds, err := s.Holds(day)
    if err != nil {
        t.Fatal(err)
    }
    for i := range holds {
        holds[i].HeldAt = holds[i].HeldAt.Round(time.Millisecond)
        holds[i].ReleaseAt = holds[i].ReleaseAt.Round(time.Millisecond)
    }
    s.Restore(day, seats(3), nil, holds)

    if _, err := s.BeginCommit(day, "S1", "u1", claims); err != nil {
        t.Fatalf("commit after restore: %v", err)
    }
}
