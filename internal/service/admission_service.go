// Package service is the admission engine's front door.  It binds the
// waiting room, the seat table, the committer and the token codec into the
// four client operations (enqueue, queue status, hold, commit) plus the
// catalogue and housekeeping calls the HTTP layer needs.
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/iliyamo/seat-admission/internal/admission"
    "github.com/iliyamo/seat-admission/internal/clock"
    "github.com/iliyamo/seat-admission/internal/metrics"
    "github.com/iliyamo/seat-admission/internal/model"
    "github.com/iliyamo/seat-admission/internal/queue"
    "github.com/iliyamo/seat-admission/internal/reservation"
    "github.com/iliyamo/seat-admission/internal/seathold"
    "github.com/iliyamo/seat-admission/internal/token"
)

const dateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// Catalogue persists which dates exist and their seats.
type Catalogue interface {
    EnsureDate(ctx context.Context, date string, seatIDs []string) (bool, error)
}

// ReservationLister reads a subject's committed reservations.
type ReservationLister interface {
    ListBySubject(ctx context.Context, subjectID string) ([]model.Reservation, error)
}

// EventPublisher announces committed reservations.  Publishing is
// best-effort; a failure never undoes a commit.
type EventPublisher interface {
    PublishReservationCommitted(ctx context.Context, ev queue.ReservationCommittedEvent) error
}

// Deps are the collaborators of an AdmissionService.  Catalogue,
// Reservations and Events may be nil.
type Deps struct {
    Queue        *admission.Queue
    Seats        *seathold.Store
    Committer    *reservation.Committer
    Codec        *token.Codec
    Catalogue    Catalogue
    Reservations ReservationLister
    Events       EventPublisher
    Clock        clock.Clock
    SeatsPerDate int
    SeatIDPrefix string
}

// AdmissionService is safe for concurrent use.
type AdmissionService struct {
    queue        *admission.Queue
    seats        *seathold.Store
    committer    *reservation.Committer
    codec        *token.Codec
    catalogue    Catalogue
    reservations ReservationLister
    events       EventPublisher
    clock        clock.Clock
    seatsPerDate int
    seatPrefix   string
}

func NewAdmissionService(d Deps) *AdmissionService {
    if d.Clock == nil {
        d.Clock = clock.Real()
    }
    if d.SeatsPerDate < 1 {
        d.SeatsPerDate = 50
    }
    if d.SeatIDPrefix == "" {
        d.SeatIDPrefix = "S"
    }
    return &AdmissionService{
        queue:        d.Queue,
        seats:        d.Seats,
        committer:    d.Committer,
        codec:        d.Codec,
        catalogue:    d.Catalogue,
        reservations: d.Reservations,
        events:       d.Events,
        clock:        d.Clock,
        seatsPerDate: d.SeatsPerDate,
        seatPrefix:   d.SeatIDPrefix,
    }
}

// Ticket is returned by Enqueue and QueueStatus: the subject's standing
// plus a queue token reflecting it.
type Ticket struct {
    admission.Status
    AlreadyQueued bool   `json:"already_queued"`
    QueueToken    string `json:"queue_token"`
}

// HoldResult is returned by HoldSeat.
type HoldResult struct {
    HoldID    string    `json:"hold_id"`
    Date      string    `json:"date"`
    SeatID    string    `json:"seat_id"`
    HeldAt    time.Time `json:"held_at"`
    ReleaseAt time.Time `json:"release_at"`
    HoldToken string    `json:"hold_token"`
}

// Enqueue places subjectID in the waiting room, or refreshes its entry,
// and issues a queue token that expires with the entry.
func (s *AdmissionService) Enqueue(ctx context.Context, subjectID string) (Ticket, error) {
    res, err := s.queue.Enqueue(subjectID)
    metrics.Enqueues.WithLabelValues(metrics.Result(err)).Inc()
    if err != nil {
        return Ticket{}, err
    }
    metrics.QueueLength.Set(float64(s.queue.Len()))

    tok, err := s.issueQueueToken(subjectID, res.Position, res.ExpiresAt)
    if err != nil {
        return Ticket{}, err
    }
    st, err := s.queue.Status(subjectID)
    if err != nil {
        // Removed between the two calls by a hand-off or a sweep.
        st = admission.Status{Position: res.Position, Admitted: res.Admitted, ExpiresAt: res.ExpiresAt}
    }
    return Ticket{Status: st, AlreadyQueued: res.AlreadyQueued, QueueToken: tok}, nil
}

// QueueStatus reports the standing of the subject the queue token was
// issued to and returns a fresh token carrying the current position.  The
// caller must be that subject.
func (s *AdmissionService) QueueStatus(ctx context.Context, subjectID, queueToken string) (Ticket, error) {
    if _, err := s.verifyQueueToken(subjectID, queueToken); err != nil {
        return Ticket{}, err
    }
    st, err := s.queue.Status(subjectID)
    if err != nil {
        return Ticket{}, err
    }
    tok, err := s.issueQueueToken(subjectID, st.Position, st.ExpiresAt)
    if err != nil {
        return Ticket{}, err
    }
    return Ticket{Status: st, AlreadyQueued: true, QueueToken: tok}, nil
}

// QueueStatusForToken is QueueStatus for callers that can only present the
// queue token (the live stream).  The subject is taken from the token.
func (s *AdmissionService) QueueStatusForToken(ctx context.Context, queueToken string) (Ticket, error) {
    claims, err := s.codec.VerifyQueueToken(queueToken)
    if err != nil {
        return Ticket{}, err
    }
    return s.QueueStatus(ctx, claims.SubjectID, queueToken)
}

// QueueLength is the number of entries in the waiting room.
func (s *AdmissionService) QueueLength() int {
    return s.queue.Len()
}

// HoldSeat places a hold for an admitted subject and hands it off from the
// waiting room.  A subject that already holds a seat on date may move the
// hold to another seat with the same queue token; the prior seat is
// released atomically.
func (s *AdmissionService) HoldSeat(ctx context.Context, subjectID, date, seatID, queueToken string) (res HoldResult, err error) {
    defer func() { metrics.HoldAttempts.WithLabelValues(metrics.Result(err)).Inc() }()

    if _, err := s.verifyQueueToken(subjectID, queueToken); err != nil {
        return HoldResult{}, err
    }
    st, err := s.queue.Status(subjectID)
    switch {
    case err == nil:
        if !st.Admitted {
            return HoldResult{}, model.ErrNotAdmitted
        }
    case errors.Is(err, model.ErrNotFound):
        if _, holding := s.seats.HeldBy(date, subjectID); !holding {
            return HoldResult{}, err
        }
    default:
        return HoldResult{}, err
    }

    claims, err := s.seats.Hold(date, seatID, subjectID)
    if err != nil {
        return HoldResult{}, err
    }
    s.queue.Dequeue(subjectID)
    metrics.QueueLength.Set(float64(s.queue.Len()))

    tok, err := s.codec.IssueHoldToken(claims)
    if err != nil {
        return HoldResult{}, fmt.Errorf("issue hold token: %w", err)
    }
    return HoldResult{
        HoldID:    claims.HoldID,
        Date:      claims.Date,
        SeatID:    claims.SeatID,
        HeldAt:    claims.HeldAt,
        ReleaseAt: claims.ReleaseAt,
        HoldToken: tok,
    }, nil
}

// ReleaseHold cancels the hold named by holdToken before it lapses.
func (s *AdmissionService) ReleaseHold(ctx context.Context, subjectID, holdToken string) error {
    claims, err := s.codec.VerifyHoldToken(holdToken)
    if err != nil {
        if errors.Is(err, model.ErrExpired) {
            return model.ErrHoldExpired
        }
        return err
    }
    if claims.HolderID != subjectID {
        return model.ErrHoldMismatch
    }
    return s.seats.Release(claims.Date, claims.SeatID, subjectID, claims.HoldID)
}

// CommitReservation converts the hold named by holdToken into a durable
// reservation.  The token must be for date and seatID and belong to
// subjectID.  The reservation is stored before this returns; the event
// announcing it is sent best-effort afterwards.
func (s *AdmissionService) CommitReservation(ctx context.Context, subjectID, date, seatID, holdToken string) (res model.Reservation, err error) {
    defer func() { metrics.Commits.WithLabelValues(metrics.Result(err)).Inc() }()

    claims, err := s.codec.VerifyHoldToken(holdToken)
    if err != nil {
        if errors.Is(err, model.ErrExpired) {
            return model.Reservation{}, model.ErrHoldExpired
        }
        return model.Reservation{}, err
    }
    if claims.HolderID != subjectID || claims.Date != date || claims.SeatID != seatID {
        return model.Reservation{}, model.ErrHoldMismatch
    }

    res, err = s.committer.Commit(ctx, date, seatID, subjectID, claims)
    if err != nil {
        if res.ID == "" {
            return model.Reservation{}, err
        }
        // Stored but the seat table refused the final transition.
        log.Printf("service: reservation %s stored but not applied in memory: %v", res.ID, err)
        err = nil
    }
    s.publish(ctx, res)
    return res, nil
}

func (s *AdmissionService) publish(ctx context.Context, res model.Reservation) {
    if s.events == nil {
        return
    }
    ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
    defer cancel()
    ev := queue.NewReservationCommittedEvent(res.ID, res.SubjectID, res.Date, res.SeatID, res.CommittedAt)
    if err := s.events.PublishReservationCommitted(ctx, ev); err != nil {
        log.Printf("service: publish reservation %s failed: %v", res.ID, err)
    }
}

// AvailableSeats lists Available seats on date in display order.
func (s *AdmissionService) AvailableSeats(ctx context.Context, date string) ([]string, error) {
    return s.seats.ListAvailable(date)
}

// Dates lists the bookable dates.
func (s *AdmissionService) Dates(ctx context.Context) []string {
    return s.seats.Dates()
}

// ReservationsFor lists subjectID's reservations, newest first.
func (s *AdmissionService) ReservationsFor(ctx context.Context, subjectID string) ([]model.Reservation, error) {
    if s.reservations == nil {
        return []model.Reservation{}, nil
    }
    return s.reservations.ListBySubject(ctx, subjectID)
}

// InitializeDate makes date bookable with the configured seats.  It
// reports false when the date already existed.
func (s *AdmissionService) InitializeDate(ctx context.Context, date string) (bool, error) {
    if _, err := time.Parse(dateLayout, date); err != nil {
        return false, ErrInvalidDate
    }
    seatIDs := s.SeatIDs()
    if s.catalogue != nil {
        if _, err := s.catalogue.EnsureDate(ctx, date, seatIDs); err != nil {
            return false, fmt.Errorf("ensure date %s: %w", date, err)
        }
    }
    return s.seats.AddDate(date, seatIDs), nil
}

// InitializeWeek makes every day of anchor's week (Sunday to Saturday)
// bookable and returns the dates created.
func (s *AdmissionService) InitializeWeek(ctx context.Context, anchor time.Time) ([]string, error) {
    var created []string
    for _, d := range WeekOf(anchor) {
        ok, err := s.InitializeDate(ctx, d)
        if err != nil {
            return created, err
        }
        if ok {
            created = append(created, d)
        }
    }
    return created, nil
}

// SeatIDs returns the seat identifiers every new date gets: prefix1..prefixN.
func (s *AdmissionService) SeatIDs() []string {
    out := make([]string, s.seatsPerDate)
    for i := range out {
        out[i] = fmt.Sprintf("%s%d", s.seatPrefix, i+1)
    }
    return out
}

// WeekOf returns the dates of t's week, Sunday first.
func WeekOf(t time.Time) []string {
    t = t.UTC()
    start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -int(t.Weekday()))
    out := make([]string, 7)
    for i := range out {
        out[i] = start.AddDate(0, 0, i).Format(dateLayout)
    }
    return out
}

func (s *AdmissionService) issueQueueToken(subjectID string, position int, expiresAt time.Time) (string, error) {
    ttl := expiresAt.Sub(s.clock.Now())
    tok, _, err := s.codec.IssueQueueToken(subjectID, position, ttl)
    if err != nil {
        return "", fmt.Errorf("issue queue token: %w", err)
    }
    return tok, nil
}

// verifyQueueToken checks the token and that it was issued to subjectID.
func (s *AdmissionService) verifyQueueToken(subjectID, raw string) (token.QueueClaims, error) {
    claims, err := s.codec.VerifyQueueToken(raw)
    if err != nil {
        return token.QueueClaims{}, err
    }
    if claims.SubjectID != subjectID {
        return token.QueueClaims{}, model.ErrInvalidToken
    }
    return claims, nil
}
