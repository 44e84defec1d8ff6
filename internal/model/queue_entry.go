package model

import "time"

// QueueEntry is a subject's place in the waiting room.  Entries are
// unique per SubjectID and are created on enqueue and removed on expiry
// or on hand-off to a seat hold.
//
// Fields:
//  SubjectID  – opaque subject identifier supplied by the identity provider.
//  EnqueuedAt – when the subject first joined the queue.
//  ExpiresAt  – when the entry lapses unless refreshed by another enqueue.
type QueueEntry struct {
    SubjectID  string    `json:"subject_id"`  // queue member
    EnqueuedAt time.Time `json:"enqueued_at"` // join instant
    ExpiresAt  time.Time `json:"expires_at"`  // lapse instant
}

// Expired reports whether the entry has lapsed at now.
func (e QueueEntry) Expired(now time.Time) bool {
    return !now.Before(e.ExpiresAt)
}
