package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("match not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusViewed     Status = "viewed"
	StatusInterested Status = "interested"
	StatusApplied    Status = "applied"
	StatusRejected   Status = "rejected"
)

// statusRank orders the forward path; rejected sits outside the order and
// is handled explicitly.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusViewed:     1,
	StatusInterested: 2,
	StatusApplied:    3,
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusViewed, StatusInterested, StatusApplied, StatusRejected:
		return Status(s), true
	}
	return "", false
}

// CanTransition reports whether from→to is a legal move. Any strictly
// forward move along pending→viewed→interested→applied is legal; rejected
// is reachable from every status except rejected itself; regressions and
// self-transitions are not.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if from == StatusRejected {
		return false
	}
	if to == StatusRejected {
		return true
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// TransitionError wraps ErrInvalidTransition with the attempted move so
// callers can report it without re-deriving the pair of states.
func TransitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Factors holds the per-dimension sub-scores the overall score derives from.
type Factors struct {
	Skill        int
	Experience   int
	Availability int
	Location     int
	Interest     int
}

type Feedback struct {
	Rating  int
	Comment string
	Helpful bool
}

type Match struct {
	ID            uuid.UUID
	SubjectID     uuid.UUID
	OpportunityID uuid.UUID

	Score   int
	Factors Factors
	Reasons []string

	Status   Status
	Feedback *Feedback

	CreatedAt time.Time
	UpdatedAt time.Time
}
