package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"talent-match/internal/collaborator"
	"talent-match/internal/domain/match"
	"talent-match/internal/domain/scoring"
	"talent-match/internal/repository"

	"github.com/google/uuid"
)

type fakeProfiles struct {
	subject  scoring.Snapshot
	subjects []scoring.Snapshot
	opp      collaborator.Opportunity
	opps     []collaborator.Opportunity

	getSubjectErr error
	listErr       error
}

func (f *fakeProfiles) GetSubject(context.Context, uuid.UUID) (scoring.Snapshot, error) {
	return f.subject, f.getSubjectErr
}

func (f *fakeProfiles) GetOpportunity(context.Context, uuid.UUID) (collaborator.Opportunity, error) {
	return f.opp, nil
}

func (f *fakeProfiles) ListActiveOpportunities(context.Context, int) ([]collaborator.Opportunity, error) {
	return f.opps, f.listErr
}

func (f *fakeProfiles) ListSubjectsBySkills(context.Context, []string, int) ([]scoring.Snapshot, error) {
	return f.subjects, f.listErr
}

func (f *fakeProfiles) ListRecentSubjectIDs(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeProfiles) ListRecentOpportunityIDs(context.Context, time.Time, int) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeMatches struct {
	mu       sync.Mutex
	created  []repository.CreateMatchParams
	pairs    map[[2]uuid.UUID]struct{}
	existing map[uuid.UUID]struct{}
	failFor  uuid.UUID
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{
		pairs:    make(map[[2]uuid.UUID]struct{}),
		existing: make(map[uuid.UUID]struct{}),
	}
}

func (f *fakeMatches) CreateIfAbsent(_ context.Context, p repository.CreateMatchParams) (match.Match, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != uuid.Nil && (p.OpportunityID == f.failFor || p.SubjectID == f.failFor) {
		return match.Match{}, false, errors.New("datastore write failed")
	}
	key := [2]uuid.UUID{p.SubjectID, p.OpportunityID}
	if _, ok := f.pairs[key]; ok {
		return match.Match{}, false, nil
	}
	f.pairs[key] = struct{}{}
	f.created = append(f.created, p)
	return match.Match{
		ID:            uuid.New(),
		SubjectID:     p.SubjectID,
		OpportunityID: p.OpportunityID,
		Score:         p.Score,
		Status:        match.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}, true, nil
}

func (f *fakeMatches) GetByID(context.Context, uuid.UUID) (match.Match, error) {
	return match.Match{}, match.ErrNotFound
}

func (f *fakeMatches) TransitionStatus(context.Context, uuid.UUID, match.Status) (match.Match, error) {
	return match.Match{}, match.ErrNotFound
}

func (f *fakeMatches) AttachFeedback(context.Context, uuid.UUID, match.Feedback) (match.Match, error) {
	return match.Match{}, match.ErrNotFound
}

func (f *fakeMatches) ListBySubject(context.Context, uuid.UUID, repository.ListFilter) ([]match.Match, error) {
	return nil, nil
}

func (f *fakeMatches) ListByOpportunity(context.Context, uuid.UUID, repository.ListFilter) ([]match.Match, error) {
	return nil, nil
}

func (f *fakeMatches) ExistingOpportunities(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return f.existing, nil
}

func (f *fakeMatches) ExistingSubjects(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return f.existing, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	batches []MatchBatch
	err     error
}

func (f *fakePublisher) PublishMatchBatch(_ context.Context, b MatchBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, b)
	return nil
}

func mustEngine(t *testing.T, w scoring.Weights) *scoring.Engine {
	t.Helper()
	e, err := scoring.NewEngine(w)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// skillOnlyWeights make the overall score equal the skill factor, which the
// tests can pin exactly through required-skill coverage ratios.
func skillOnlyWeights() scoring.Weights {
	return scoring.Weights{Skill: 1.0}
}

func opportunityWithRequired(n int) collaborator.Opportunity {
	skills := make([]string, 0, n)
	for i := 0; i < n; i++ {
		skills = append(skills, fmt.Sprintf("skill-%03d", i))
	}
	return collaborator.Opportunity{
		Snapshot: scoring.Snapshot{ID: uuid.New()},
		Spec:     scoring.RequirementSpec{RequiredSkills: skills},
	}
}

func subjectCovering(n int) scoring.Snapshot {
	skills := make([]string, 0, n)
	for i := 0; i < n; i++ {
		skills = append(skills, fmt.Sprintf("skill-%03d", i))
	}
	return scoring.Snapshot{ID: uuid.New(), Skills: skills}
}

func TestForSubject_CreationThresholdBoundary(t *testing.T) {
	// Subject covers 30 of 100 required skills on one opportunity (score
	// 30) and 29 of 100 on the other (score 29); only the first clears the
	// default threshold.
	atThreshold := opportunityWithRequired(100)
	belowThreshold := opportunityWithRequired(100)

	subject := subjectCovering(30)
	belowThreshold.Spec.RequiredSkills = append([]string{}, belowThreshold.Spec.RequiredSkills...)
	// Shift the below-threshold opportunity's skills so only 29 overlap.
	belowThreshold.Spec.RequiredSkills[29] = "unmatched-skill"

	profiles := &fakeProfiles{
		subject: subject,
		opps:    []collaborator.Opportunity{atThreshold, belowThreshold},
	}
	matches := newFakeMatches()
	pub := &fakePublisher{}

	g := NewGenerator(profiles, matches, mustEngine(t, skillOnlyWeights()), pub,
		Options{CreationThreshold: 30}, nil)

	sum, err := g.ForSubject(context.Background(), subject.ID)
	if err != nil {
		t.Fatalf("ForSubject: %v", err)
	}
	if sum.Created != 1 {
		t.Fatalf("created = %d, want 1 (only the at-threshold pair)", sum.Created)
	}
	if len(matches.created) != 1 || matches.created[0].Score != 30 {
		t.Errorf("persisted = %+v, want one record at score 30", matches.created)
	}
}

func TestForSubject_ZeroMatchTriggerStillPublishes(t *testing.T) {
	profiles := &fakeProfiles{
		subject: scoring.Snapshot{ID: uuid.New()},
		opps:    nil,
	}
	pub := &fakePublisher{}

	g := NewGenerator(profiles, newFakeMatches(), mustEngine(t, skillOnlyWeights()), pub,
		Options{CreationThreshold: 30}, nil)

	if _, err := g.ForSubject(context.Background(), profiles.subject.ID); err != nil {
		t.Fatalf("ForSubject: %v", err)
	}
	if len(pub.batches) != 1 {
		t.Fatalf("published %d batches, want exactly 1", len(pub.batches))
	}
	if b := pub.batches[0]; b.Created != 0 || len(b.Preview) != 0 {
		t.Errorf("zero-match batch = %+v", b)
	}
}

func TestForSubject_EnumerationFailureAbortsWithoutPublish(t *testing.T) {
	profiles := &fakeProfiles{
		subject: scoring.Snapshot{ID: uuid.New()},
		listErr: errors.New("profile service unavailable"),
	}
	pub := &fakePublisher{}

	g := NewGenerator(profiles, newFakeMatches(), mustEngine(t, skillOnlyWeights()), pub,
		Options{CreationThreshold: 30}, nil)

	if _, err := g.ForSubject(context.Background(), profiles.subject.ID); err == nil {
		t.Fatal("expected enumeration failure to abort the trigger")
	}
	if len(pub.batches) != 0 {
		t.Error("aborted trigger must not publish a batch")
	}
}

func TestForSubject_PerPairFailureIsIsolated(t *testing.T) {
	subject := subjectCovering(10)
	good := opportunityWithRequired(10)
	bad := opportunityWithRequired(10)

	matches := newFakeMatches()
	matches.failFor = bad.Snapshot.ID

	profiles := &fakeProfiles{subject: subject, opps: []collaborator.Opportunity{good, bad}}
	pub := &fakePublisher{}

	g := NewGenerator(profiles, matches, mustEngine(t, skillOnlyWeights()), pub,
		Options{CreationThreshold: 30}, nil)

	sum, err := g.ForSubject(context.Background(), subject.ID)
	if err != nil {
		t.Fatalf("ForSubject: %v", err)
	}
	if sum.Created != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v, want 1 created / 1 failed", sum)
	}
	if len(pub.batches) != 1 {
		t.Error("batch must still be published after isolated pair failures")
	}
}

func TestForSubject_SkipsTeamMembersAndExistingPairs(t *testing.T) {
	subject := subjectCovering(10)

	teamOpp := opportunityWithRequired(10)
	teamOpp.TeamMemberIDs = []uuid.UUID{subject.ID}
	existingOpp := opportunityWithRequired(10)
	freshOpp := opportunityWithRequired(10)

	matches := newFakeMatches()
	matches.existing[existingOpp.Snapshot.ID] = struct{}{}

	profiles := &fakeProfiles{
		subject: subject,
		opps:    []collaborator.Opportunity{teamOpp, existingOpp, freshOpp},
	}
	pub := &fakePublisher{}

	g := NewGenerator(profiles, matches, mustEngine(t, skillOnlyWeights()), pub,
		Options{CreationThreshold: 30}, nil)

	sum, err := g.ForSubject(context.Background(), subject.ID)
	if err != nil {
		t.Fatalf("ForSubject: %v", err)
	}
	if sum.Candidates != 1 || sum.Created != 1 {
		t.Errorf("summary = %+v, want only the fresh opportunity scored", sum)
	}
	if len(matches.created) != 1 || matches.created[0].OpportunityID != freshOpp.Snapshot.ID {
		t.Errorf("persisted wrong pair: %+v", matches.created)
	}
}

func TestForOpportunity_PreviewIsTopNByScore(t *testing.T) {
	opp := opportunityWithRequired(10)

	subjects := []scoring.Snapshot{
		subjectCovering(10), // 100
		subjectCovering(5),  // 50
		subjectCovering(8),  // 80
		subjectCovering(4),  // 40
	}

	profiles := &fakeProfiles{opp: opp, subjects: subjects}
	pub := &fakePublisher{}

	g := NewGenerator(profiles, newFakeMatches(), mustEngine(t, skillOnlyWeights()), pub,
		Options{CreationThreshold: 30, PreviewSize: 2}, nil)

	sum, err := g.ForOpportunity(context.Background(), opp.Snapshot.ID)
	if err != nil {
		t.Fatalf("ForOpportunity: %v", err)
	}
	if sum.Created != 4 {
		t.Fatalf("created = %d, want 4", sum.Created)
	}

	b := pub.batches[0]
	if len(b.Preview) != 2 {
		t.Fatalf("preview len = %d, want 2", len(b.Preview))
	}
	if b.Preview[0].Score != 100 || b.Preview[1].Score != 80 {
		t.Errorf("preview scores = [%d %d], want [100 80]", b.Preview[0].Score, b.Preview[1].Score)
	}
}

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(4, 16)
	errs := pool.Run(context.Background())

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 16; i++ {
		i := i
		pool.Submit(func(context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			if i%4 == 0 {
				return errors.New("task error")
			}
			return nil
		})
	}
	pool.Close()

	failures := 0
	for range errs {
		failures++
	}
	if ran != 16 {
		t.Errorf("ran %d tasks, want 16", ran)
	}
	if failures != 4 {
		t.Errorf("failures = %d, want 4", failures)
	}
}
