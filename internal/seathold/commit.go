package seathold

import "github.com/iliyamo/seat-admission/internal/model"

// BeginCommit validates claims against the live hold on seatID and, if
// they match and the hold has not lapsed, marks the hold as committing.
// A committing hold stays Held: the sweeper skips it and every other
// mutation of the seat or of the holder's hold fails with
// ErrCommitInProgress until CompleteCommit or AbortCommit.
//
// Failures leave the seat untouched.
func (s *Store) BeginCommit(date, seatID, holderID string, claims model.HoldClaims) (model.Hold, error) {
    t, err := s.lock(date)
    if err != nil {
        return model.Hold{}, err
    }
    defer t.mu.Unlock()

    st, ok := t.seats[seatID]
    if !ok {
        return model.Hold{}, model.ErrUnknownSeat
    }
    if st.status != model.SeatHeld || st.hold.HolderID != holderID || !claims.Matches(*st.hold) {
        return model.Hold{}, model.ErrHoldMismatch
    }
    if st.committing {
        return model.Hold{}, model.ErrCommitInProgress
    }
    if st.hold.Expired(s.clock.Now()) {
        return model.Hold{}, model.ErrHoldExpired
    }
    st.committing = true
    return *st.hold, nil
}

// CompleteCommit moves a committing seat to Reserved.  It is a single
// transition: no reader ever sees the seat Available in between.
func (s *Store) CompleteCommit(date, seatID, holdID string) error {
    t, err := s.lock(date)
    if err != nil {
        return err
    }
    defer t.mu.Unlock()

    st, ok := t.seats[seatID]
    if !ok {
        return model.ErrUnknownSeat
    }
    if st.status != model.SeatHeld || !st.committing || st.hold.ID != holdID {
        return model.ErrHoldMismatch
    }
    if t.holders[st.hold.HolderID] == seatID {
        delete(t.holders, st.hold.HolderID)
    }
    st.status = model.SeatReserved
    st.hold = nil
    st.committing = false
    return nil
}

// AbortCommit clears the committing mark so the hold behaves normally
// again.  The seat stays Held by the same holder.
func (s *Store) AbortCommit(date, seatID, holdID string) {
    t, err := s.lock(date)
    if err != nil {
        return
    }
    defer t.mu.Unlock()
    if st, ok := t.seats[seatID]; ok && st.committing && st.hold != nil && st.hold.ID == holdID {
        st.committing = false
    }
}
