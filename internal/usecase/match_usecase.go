package usecase

import (
	"context"
	"errors"
	"strings"

	"talent-match/internal/domain/match"
	"talent-match/internal/pipeline"
	"talent-match/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidStatus = errors.New("unknown status value")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Generator is the regeneration entry point; satisfied by the pipeline's
// match Generator.
type Generator interface {
	ForSubject(ctx context.Context, subjectID uuid.UUID) (pipeline.Summary, error)
	ForOpportunity(ctx context.Context, opportunityID uuid.UUID) (pipeline.Summary, error)
}

type MatchUsecase interface {
	ListForSubject(ctx context.Context, subjectID uuid.UUID, f repository.ListFilter) ([]match.Match, error)
	ListForOpportunity(ctx context.Context, opportunityID uuid.UUID, f repository.ListFilter) ([]match.Match, error)

	UpdateStatus(ctx context.Context, matchID uuid.UUID, status string) (match.Match, error)
	AttachFeedback(ctx context.Context, matchID uuid.UUID, fb match.Feedback) (match.Match, error)

	RegenerateForSubject(ctx context.Context, subjectID uuid.UUID) (pipeline.Summary, error)
	RegenerateForOpportunity(ctx context.Context, opportunityID uuid.UUID) (pipeline.Summary, error)
}

type Matches struct {
	matches   repository.MatchRepository
	generator Generator
}

func NewMatchUsecase(matches repository.MatchRepository, generator Generator) *Matches {
	return &Matches{matches: matches, generator: generator}
}

func (u *Matches) ListForSubject(ctx context.Context, subjectID uuid.UUID, f repository.ListFilter) ([]match.Match, error) {
	if subjectID == uuid.Nil {
		return nil, ErrInvalidID
	}
	return u.matches.ListBySubject(ctx, subjectID, f)
}

func (u *Matches) ListForOpportunity(ctx context.Context, opportunityID uuid.UUID, f repository.ListFilter) ([]match.Match, error) {
	if opportunityID == uuid.Nil {
		return nil, ErrInvalidID
	}
	return u.matches.ListByOpportunity(ctx, opportunityID, f)
}

func (u *Matches) UpdateStatus(ctx context.Context, matchID uuid.UUID, status string) (match.Match, error) {
	if matchID == uuid.Nil {
		return match.Match{}, ErrInvalidID
	}
	to, ok := match.ParseStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ok {
		return match.Match{}, ErrInvalidStatus
	}
	return u.matches.TransitionStatus(ctx, matchID, to)
}

func (u *Matches) AttachFeedback(ctx context.Context, matchID uuid.UUID, fb match.Feedback) (match.Match, error) {
	if matchID == uuid.Nil {
		return match.Match{}, ErrInvalidID
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return match.Match{}, ErrInvalidRating
	}
	return u.matches.AttachFeedback(ctx, matchID, fb)
}

func (u *Matches) RegenerateForSubject(ctx context.Context, subjectID uuid.UUID) (pipeline.Summary, error) {
	if subjectID == uuid.Nil {
		return pipeline.Summary{}, ErrInvalidID
	}
	return u.generator.ForSubject(ctx, subjectID)
}

func (u *Matches) RegenerateForOpportunity(ctx context.Context, opportunityID uuid.UUID) (pipeline.Summary, error) {
	if opportunityID == uuid.Nil {
		return pipeline.Summary{}, ErrInvalidID
	}
	return u.generator.ForOpportunity(ctx, opportunityID)
}
