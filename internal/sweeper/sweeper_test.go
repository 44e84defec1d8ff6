package sweeper

import (
    "context"
    "errors"
    "sync/atomic"
    "testing"
    "time"

    "github.com/iliyamo/seat-admission/internal/admission"
    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/model"
    "github.com/iliyamo/seat-admission/internal/seathold"
)

const day = "2024-07-01"

var epoch = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type countingSnap struct {
    calls atomic.Int32
    err   error
}

func (c *countingSnap) Save(context.Context) error {
    c.calls.Add(1)
    return c.err
}

func fixture() (*admission.Queue, *seathold.Store, *clock.Fake) {
    clk := clock.NewFake(epoch)
    q := admission.New(admission.Config{EntryTTL: 5 * time.Minute, BatchSize: 2, MinutesPerBatch: 3}, clk)
    s := seathold.New(5*time.Minute, clk)
    s.AddDate(day, []string{"S1", "S2", "S3"})
    return q, s, clk
}

func TestSweepReleasesLapsedHold(t *testing.T) {
    q, s, clk := fixture()
    if _, err := s.Hold(day, "S3", "u1"); err != nil {
        t.Fatal(err)
    }
    sw := New(q, s, time.Second)

    clk.Advance(4 * time.Minute)
    if res := sw.SweepOnce(context.Background()); res.HoldsReleased != 0 {
        t.Fatalf("released live hold: %+v", res)
    }

    clk.Advance(time.Minute)
    res := sw.SweepOnce(context.Background())
    if res.HoldsReleased != 1 || res.Errors != 0 {
        t.Fatalf("res = %+v", res)
    }
    rec, _ := s.Seat(day, "S3")
    if rec.Status != model.SeatAvailable || rec.Hold != nil {
        t.Fatalf("S3 = %+v", rec)
    }
    if _, err := s.Hold(day, "S3", "u2"); err != nil {
        t.Fatalf("u2 hold after sweep: %v", err)
    }
}

func TestSweepExpiresQueueEntries(t *testing.T) {
    q, s, clk := fixture()
    q.Enqueue("u1")
    clk.Advance(time.Minute)
    q.Enqueue("u2")
    sw := New(q, s, time.Second)

    clk.Advance(4 * time.Minute)
    res := sw.SweepOnce(context.Background())
    if res.QueueExpired != 1 {
        t.Fatalf("res = %+v", res)
    }
    if _, err := q.Status("u1"); !errors.Is(err, model.ErrNotFound) {
        t.Fatalf("u1 status: %v", err)
    }
    st, err := q.Status("u2")
    if err != nil || st.Position != 0 {
        t.Fatalf("u2 = %+v, %v", st, err)
    }
}

func TestSweepIsIdempotent(t *testing.T) {
    q, s, clk := fixture()
    q.Enqueue("u1")
    s.Hold(day, "S1", "u1")
    sw := New(q, s, time.Second)
    clk.Advance(10 * time.Minute)

    first := sw.SweepOnce(context.Background())
    second := sw.SweepOnce(context.Background())
    if first.QueueExpired != 1 || first.HoldsReleased != 1 {
        t.Fatalf("first = %+v", first)
    }
    if second != (Result{}) {
        t.Fatalf("second = %+v", second)
    }
}

func TestSnapshotAfterPass(t *testing.T) {
    q, s, _ := fixture()
    snap := &countingSnap{err: errors.New("redis down")}
    sw := New(q, s, time.Second, WithSnapshotter(snap))

    res := sw.SweepOnce(context.Background())
    if snap.calls.Load() != 1 {
        t.Fatalf("snapshot calls = %d", snap.calls.Load())
    }
    if res.Errors != 1 {
        t.Fatalf("snapshot failure not counted: %+v", res)
    }
}

func TestRunStopsOnCancel(t *testing.T) {
    q, s, _ := fixture()
    snap := &countingSnap{}
    sw := New(q, s, 5*time.Millisecond, WithSnapshotter(snap))

    ctx, cancel := context.WithCancel(context.Background())
    done := make(chan struct{})
    go func() {
        sw.Run(ctx)
        close(done)
    }()

    deadline := time.After(2 * time.Second)
    for snap.calls.Load() < 2 {
        select {
        case <-deadline:
            t.Fatal("sweeper never ticked")
        case <-time.After(time.Millisecond):
        }
    }
    cancel()
    select {
    case <-done:
    case <-time.After(2 * time.Second):
        t.Fatal("Run did not return after cancel")
    }
}
