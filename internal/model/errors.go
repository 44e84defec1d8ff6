package model

import "errors"

// Business-rule failures of the admission engine.  Every layer returns
// these values (possibly wrapped) and the HTTP layer maps each one to a
// distinct status so clients can decide whether to retry, re-poll or
// restart the flow.
var (
    // ErrInvalidToken: malformed token or bad signature.  Not retryable.
    ErrInvalidToken = errors.New("invalid token")
    // ErrExpired: token past its expiry.  The client must re-enter the flow.
    ErrExpired = errors.New("token expired")
    // ErrNotFound: subject is not queued or its entry lapsed.
    ErrNotFound = errors.New("subject not in queue")
    // ErrNotAdmitted: subject is queued but still outside the admitted window.
    ErrNotAdmitted = errors.New("subject not yet admitted")
    // ErrSeatUnavailable: seat is held by someone else or reserved.
    ErrSeatUnavailable = errors.New("seat unavailable")
    // ErrHoldMismatch: commit against a hold that is not the live one.
    ErrHoldMismatch = errors.New("hold does not match")
    // ErrHoldExpired: commit against a hold whose release instant has passed.
    ErrHoldExpired = errors.New("hold expired")
    // ErrCommitInProgress: the holder's hold is being committed right now.
    ErrCommitInProgress = errors.New("commit in progress")
    // ErrUnknownDate: the date is not in the seat catalogue.
    ErrUnknownDate = errors.New("date not found")
    // ErrUnknownSeat: the seat does not exist on the date.
    ErrUnknownSeat = errors.New("seat not found")
)
