// Package room provides PostgreSQL-backed storage for chat room records.
// A room starts life as a "waiting room" (second seat empty, inactive) and
// becomes an active session when another user claims the second seat. The
// claim is a conditional single-row update, so exactly one claimer wins.
package room

import (
	"errors"
	"time"
)

// Mode values for a room.
const (
	ModeRandom   = "random"   // match with anyone
	ModeFiltered = "filtered" // match with a specific gender (subscription-gated)
)

var (
	// ErrClaimConflict is returned when a claim loses the race: the waiting
	// room was already claimed (or deleted) by the time the update ran.
	ErrClaimConflict = errors.New("room: already claimed")

	// ErrAlreadyWaiting is returned when a user who already has an open
	// waiting room tries to create another one.
	ErrAlreadyWaiting = errors.New("room: user already has a waiting room")

	// ErrNotFound is returned when a room does not exist.
	ErrNotFound = errors.New("room: not found")
)

// Room is a chat room record. ParticipantB is empty while the room is
// waiting for a partner.
type Room struct {
	ID           string
	ParticipantA string
	ParticipantB string // empty while waiting
	IsActive     bool
	Mode         string // ModeRandom or ModeFiltered
	TargetGender string // set only for ModeFiltered
	CreatedAt    time.Time
	EndedAt      time.Time // zero until the room is closed
}

// Waiting reports whether the room's second seat is still empty.
func (r *Room) Waiting() bool {
	return r.ParticipantB == ""
}

// Partner returns the other participant's ID, or "" if userID is not a
// participant or the room is still waiting.
func (r *Room) Partner(userID string) string {
	if userID == r.ParticipantA {
		return r.ParticipantB
	}
	if userID == r.ParticipantB {
		return r.ParticipantA
	}
	return ""
}

// IsParticipant checks whether userID holds one of the room's seats.
func (r *Room) IsParticipant(userID string) bool {
	return userID == r.ParticipantA || (r.ParticipantB != "" && userID == r.ParticipantB)
}

// WaitingFilter narrows a waiting-room search.
type WaitingFilter struct {
	Mode          string
	TargetGender  string // filtered mode: the gender the room must be looking for
	CreatorGender string // filtered mode: the gender the searcher wants the creator to have
}
