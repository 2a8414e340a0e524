package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"talent-match/internal/collaborator"
	"talent-match/internal/domain/match"
	"talent-match/internal/domain/scoring"
	"talent-match/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SideSubject     = "subject"
	SideOpportunity = "opportunity"
)

type MatchPreview struct {
	MatchID       uuid.UUID `json:"match_id"`
	SubjectID     uuid.UUID `json:"subject_id"`
	OpportunityID uuid.UUID `json:"opportunity_id"`
	Score         int       `json:"score"`
}

// MatchBatch is the outbound "matches generated" notification, published
// exactly once per processed trigger, including zero-match triggers.
type MatchBatch struct {
	TriggerSide string         `json:"trigger_side"`
	TriggerID   uuid.UUID      `json:"trigger_id"`
	Created     int            `json:"created"`
	Preview     []MatchPreview `json:"preview"`
}

type BatchPublisher interface {
	PublishMatchBatch(ctx context.Context, batch MatchBatch) error
}

type Summary struct {
	TriggerSide string
	TriggerID   uuid.UUID
	Candidates  int
	Created     int
	Failed      int
}

type Options struct {
	CreationThreshold int
	CandidatePageSize int
	ScoringWorkers    int
	PreviewSize       int
}

// Generator is the matching unit of work: enumerate the opposite
// population for a trigger, score every eligible pair, persist the pairs
// that clear the creation threshold, and publish one batch event. The
// event consumer and the reconciliation sweep both drive this same type.
type Generator struct {
	profiles  collaborator.ProfileClient
	matches   repository.MatchRepository
	engine    *scoring.Engine
	publisher BatchPublisher
	opts      Options
	log       *zap.Logger
}

func NewGenerator(
	profiles collaborator.ProfileClient,
	matches repository.MatchRepository,
	engine *scoring.Engine,
	publisher BatchPublisher,
	opts Options,
	logger *zap.Logger,
) *Generator {
	if opts.CandidatePageSize <= 0 {
		opts.CandidatePageSize = 100
	}
	if opts.ScoringWorkers <= 0 {
		opts.ScoringWorkers = 8
	}
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		profiles:  profiles,
		matches:   matches,
		engine:    engine,
		publisher: publisher,
		opts:      opts,
		log:       logger,
	}
}

// candidate is one scorable pair; both sides resolved before submission to
// the scoring pool.
type candidate struct {
	subject     scoring.Snapshot
	opportunity collaborator.Opportunity
}

func (c candidate) pairParams(res scoring.Result) repository.CreateMatchParams {
	return repository.CreateMatchParams{
		SubjectID:     c.subject.ID,
		OpportunityID: c.opportunity.Snapshot.ID,
		Score:         res.Score,
		Factors:       res.Factors,
		Reasons:       res.Reasons,
	}
}

// ForSubject runs the pipeline for a subject-side trigger. Enumeration
// failures abort the whole trigger; per-pair failures are logged and
// skipped.
func (g *Generator) ForSubject(ctx context.Context, subjectID uuid.UUID) (Summary, error) {
	subject, err := g.profiles.GetSubject(ctx, subjectID)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch subject %s: %w", subjectID, err)
	}

	opps, err := g.profiles.ListActiveOpportunities(ctx, g.opts.CandidatePageSize)
	if err != nil {
		return Summary{}, fmt.Errorf("list opportunities: %w", err)
	}

	eligible := make([]collaborator.Opportunity, 0, len(opps))
	ids := make([]uuid.UUID, 0, len(opps))
	for _, opp := range opps {
		if isTeamMember(subjectID, opp) {
			continue
		}
		eligible = append(eligible, opp)
		ids = append(ids, opp.Snapshot.ID)
	}

	existing, err := g.matches.ExistingOpportunities(ctx, subjectID, ids)
	if err != nil {
		return Summary{}, fmt.Errorf("check existing pairs: %w", err)
	}

	cands := make([]candidate, 0, len(eligible))
	for _, opp := range eligible {
		if _, ok := existing[opp.Snapshot.ID]; ok {
			continue
		}
		cands = append(cands, candidate{subject: subject, opportunity: opp})
	}

	return g.run(ctx, SideSubject, subjectID, cands)
}

// ForOpportunity runs the pipeline for an opportunity-side trigger.
func (g *Generator) ForOpportunity(ctx context.Context, opportunityID uuid.UUID) (Summary, error) {
	opp, err := g.profiles.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch opportunity %s: %w", opportunityID, err)
	}

	subjects, err := g.profiles.ListSubjectsBySkills(ctx, opp.Spec.RequiredSkills, g.opts.CandidatePageSize)
	if err != nil {
		return Summary{}, fmt.Errorf("list subjects: %w", err)
	}

	eligible := make([]scoring.Snapshot, 0, len(subjects))
	ids := make([]uuid.UUID, 0, len(subjects))
	for _, s := range subjects {
		if isTeamMember(s.ID, opp) {
			continue
		}
		eligible = append(eligible, s)
		ids = append(ids, s.ID)
	}

	existing, err := g.matches.ExistingSubjects(ctx, opportunityID, ids)
	if err != nil {
		return Summary{}, fmt.Errorf("check existing pairs: %w", err)
	}

	cands := make([]candidate, 0, len(eligible))
	for _, s := range eligible {
		if _, ok := existing[s.ID]; ok {
			continue
		}
		cands = append(cands, candidate{subject: s, opportunity: opp})
	}

	return g.run(ctx, SideOpportunity, opportunityID, cands)
}

func (g *Generator) run(ctx context.Context, side string, triggerID uuid.UUID, cands []candidate) (Summary, error) {
	start := time.Now()

	var (
		mu      sync.Mutex
		created []match.Match
	)

	pool := NewWorkerPool(g.opts.ScoringWorkers, len(cands))
	errs := pool.Run(ctx)
	for _, c := range cands {
		c := c
		pool.Submit(func(ctx context.Context) error {
			res := g.engine.Score(c.subject, c.opportunity.Snapshot, c.opportunity.Spec)
			if res.Score < g.opts.CreationThreshold {
				return nil
			}
			m, ok, err := g.matches.CreateIfAbsent(ctx, c.pairParams(res))
			if err != nil {
				return fmt.Errorf("persist pair (%s, %s): %w", c.subject.ID, c.opportunity.Snapshot.ID, err)
			}
			if !ok {
				// Another trigger won the race for this pair; idempotent no-op.
				return nil
			}
			mu.Lock()
			created = append(created, m)
			mu.Unlock()
			return nil
		})
	}
	pool.Close()

	failed := 0
	for err := range errs {
		failed++
		g.log.Warn("pair skipped",
			zap.String("side", side),
			zap.String("trigger_id", triggerID.String()),
			zap.Error(err),
		)
	}

	sort.Slice(created, func(i, j int) bool {
		if created[i].Score != created[j].Score {
			return created[i].Score > created[j].Score
		}
		return created[i].CreatedAt.After(created[j].CreatedAt)
	})

	batch := MatchBatch{
		TriggerSide: side,
		TriggerID:   triggerID,
		Created:     len(created),
		Preview:     preview(created, g.opts.PreviewSize),
	}
	if err := g.publisher.PublishMatchBatch(ctx, batch); err != nil {
		return Summary{}, fmt.Errorf("publish batch: %w", err)
	}

	sum := Summary{
		TriggerSide: side,
		TriggerID:   triggerID,
		Candidates:  len(cands),
		Created:     len(created),
		Failed:      failed,
	}
	g.log.Info("trigger processed",
		zap.String("side", side),
		zap.String("trigger_id", triggerID.String()),
		zap.Int("candidates", sum.Candidates),
		zap.Int("created", sum.Created),
		zap.Int("failed", sum.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return sum, nil
}

func preview(created []match.Match, size int) []MatchPreview {
	if size > len(created) {
		size = len(created)
	}
	out := make([]MatchPreview, 0, size)
	for _, m := range created[:size] {
		out = append(out, MatchPreview{
			MatchID:       m.ID,
			SubjectID:     m.SubjectID,
			OpportunityID: m.OpportunityID,
			Score:         m.Score,
		})
	}
	return out
}

func isTeamMember(subjectID uuid.UUID, opp collaborator.Opportunity) bool {
	for _, id := range opp.TeamMemberIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}
