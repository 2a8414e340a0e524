package repository

import (
	"context"
	"fmt"
	"time"

	"talent-match/internal/database"
	"talent-match/internal/domain/match"

	"github.com/google/uuid"
)

type CreateMatchParams struct {
	SubjectID     uuid.UUID
	OpportunityID uuid.UUID
	Score         int
	Factors       match.Factors
	Reasons       []string
}

type ListFilter struct {
	MinScore int
	Limit    int
	Offset   int
}

type MatchRepository interface {
	// CreateIfAbsent persists a new match unless one already exists for the
	// pair. The bool reports whether a record was created; an existing pair
	// is a no-op, not an error.
	CreateIfAbsent(ctx context.Context, p CreateMatchParams) (match.Match, bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (match.Match, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to match.Status) (match.Match, error)
	AttachFeedback(ctx context.Context, id uuid.UUID, fb match.Feedback) (match.Match, error)

	ListBySubject(ctx context.Context, subjectID uuid.UUID, f ListFilter) ([]match.Match, error)
	ListByOpportunity(ctx context.Context, opportunityID uuid.UUID, f ListFilter) ([]match.Match, error)

	// ExistingOpportunities reports which of the given opportunities already
	// have a match with the subject; used by the enumerator to skip scoring
	// work. The uniqueness constraint still closes the race at write time.
	ExistingOpportunities(ctx context.Context, subjectID uuid.UUID, opportunityIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
	ExistingSubjects(ctx context.Context, opportunityID uuid.UUID, subjectIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
}

const matchColumns = `id, subject_id, opportunity_id, score,
	factor_skill, factor_experience, factor_availability, factor_location, factor_interest,
	reasons, status, feedback_rating, feedback_comment, feedback_helpful, created_at, updated_at`

type PostgresMatchRepository struct {
	db database.DB
}

func NewPostgresMatchRepository(db database.DB) *PostgresMatchRepository {
	return &PostgresMatchRepository{db: db}
}

func (r *PostgresMatchRepository) CreateIfAbsent(ctx context.Context, p CreateMatchParams) (match.Match, bool, error) {
	if p.SubjectID == uuid.Nil || p.OpportunityID == uuid.Nil {
		return match.Match{}, false, fmt.Errorf("pair ids must be set")
	}

	m := match.Match{
		ID:            uuid.New(),
		SubjectID:     p.SubjectID,
		OpportunityID: p.OpportunityID,
		Score:         p.Score,
		Factors:       p.Factors,
		Reasons:       p.Reasons,
		Status:        match.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	m.UpdatedAt = m.CreatedAt
	if m.Reasons == nil {
		m.Reasons = []string{}
	}

	affected, err := r.db.Exec(ctx,
		`INSERT INTO matches (id, subject_id, opportunity_id, score,
			factor_skill, factor_experience, factor_availability, factor_location, factor_interest,
			reasons, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		 ON CONFLICT (subject_id, opportunity_id) DO NOTHING`,
		m.ID, m.SubjectID, m.OpportunityID, m.Score,
		m.Factors.Skill, m.Factors.Experience, m.Factors.Availability, m.Factors.Location, m.Factors.Interest,
		m.Reasons, string(m.Status), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return match.Match{}, false, err
	}
	if affected == 0 {
		return match.Match{}, false, nil
	}
	return m, true, nil
}

func (r *PostgresMatchRepository) GetByID(ctx context.Context, id uuid.UUID) (match.Match, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	if err != nil {
		return match.Match{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return match.Match{}, err
		}
		return match.Match{}, match.ErrNotFound
	}
	return scanMatch(rows)
}

func (r *PostgresMatchRepository) TransitionStatus(ctx context.Context, id uuid.UUID, to match.Status) (match.Match, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return match.Match{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return match.Match{}, err
	}
	if !rows.Next() {
		scanErr := rows.Err()
		rows.Close()
		if scanErr != nil {
			return match.Match{}, scanErr
		}
		return match.Match{}, match.ErrNotFound
	}
	m, err := scanMatch(rows)
	rows.Close()
	if err != nil {
		return match.Match{}, err
	}

	if !match.CanTransition(m.Status, to) {
		return match.Match{}, match.TransitionError(m.Status, to)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE matches SET status = $1, updated_at = $2 WHERE id = $3`,
		string(to), now, id,
	); err != nil {
		return match.Match{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return match.Match{}, err
	}

	m.Status = to
	m.UpdatedAt = now
	return m, nil
}

func (r *PostgresMatchRepository) AttachFeedback(ctx context.Context, id uuid.UUID, fb match.Feedback) (match.Match, error) {
	now := time.Now().UTC()
	affected, err := r.db.Exec(ctx,
		`UPDATE matches
		 SET feedback_rating = $1, feedback_comment = $2, feedback_helpful = $3, updated_at = $4
		 WHERE id = $5`,
		fb.Rating, fb.Comment, fb.Helpful, now, id,
	)
	if err != nil {
		return match.Match{}, err
	}
	if affected == 0 {
		return match.Match{}, match.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresMatchRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID, f ListFilter) ([]match.Match, error) {
	return r.list(ctx, `subject_id`, subjectID, f)
}

func (r *PostgresMatchRepository) ListByOpportunity(ctx context.Context, opportunityID uuid.UUID, f ListFilter) ([]match.Match, error) {
	return r.list(ctx, `opportunity_id`, opportunityID, f)
}

func (r *PostgresMatchRepository) list(ctx context.Context, column string, id uuid.UUID, f ListFilter) ([]match.Match, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	minScore := f.MinScore
	if minScore < 0 {
		minScore = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 WHERE `+column+` = $1 AND score >= $2
		 ORDER BY score DESC, created_at DESC
		 LIMIT $3 OFFSET $4`,
		id, minScore, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]match.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresMatchRepository) ExistingOpportunities(ctx context.Context, subjectID uuid.UUID, opportunityIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return r.existing(ctx, `subject_id`, `opportunity_id`, subjectID, opportunityIDs)
}

func (r *PostgresMatchRepository) ExistingSubjects(ctx context.Context, opportunityID uuid.UUID, subjectIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return r.existing(ctx, `opportunity_id`, `subject_id`, opportunityID, subjectIDs)
}

func (r *PostgresMatchRepository) existing(ctx context.Context, anchorCol, otherCol string, anchor uuid.UUID, others []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{}, len(others))
	if len(others) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+otherCol+` FROM matches WHERE `+anchorCol+` = $1 AND `+otherCol+` = ANY($2)`,
		anchor, others,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (match.Match, error) {
	var (
		m       match.Match
		status  string
		rating  *int
		comment *string
		helpful *bool
	)
	err := row.Scan(
		&m.ID, &m.SubjectID, &m.OpportunityID, &m.Score,
		&m.Factors.Skill, &m.Factors.Experience, &m.Factors.Availability, &m.Factors.Location, &m.Factors.Interest,
		&m.Reasons, &status, &rating, &comment, &helpful, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return match.Match{}, err
	}

	m.Status = match.Status(status)
	if rating != nil {
		fb := match.Feedback{Rating: *rating}
		if comment != nil {
			fb.Comment = *comment
		}
		if helpful != nil {
			fb.Helpful = *helpful
		}
		m.Feedback = &fb
	}
	return m, nil
}
