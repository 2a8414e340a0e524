package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"talent-match/internal/database"
	"talent-match/internal/domain/match"

	"github.com/google/uuid"
)

// fakeDB emulates just enough of the match store for repository tests: an
// in-memory table guarded by a mutex, with the pair-uniqueness constraint
// applied on insert the way the real UNIQUE index would.
type fakeDB struct {
	mu   sync.Mutex
	byID map[uuid.UUID]match.Match
	pair map[[2]uuid.UUID]uuid.UUID
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		byID: make(map[uuid.UUID]match.Match),
		pair: make(map[[2]uuid.UUID]uuid.UUID),
	}
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close() error               { return nil }

func (f *fakeDB) Exec(_ context.Context, query string, args ...any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.Contains(query, "INSERT INTO matches"):
		key := [2]uuid.UUID{args[1].(uuid.UUID), args[2].(uuid.UUID)}
		if _, exists := f.pair[key]; exists {
			return 0, nil
		}
		m := match.Match{
			ID:            args[0].(uuid.UUID),
			SubjectID:     args[1].(uuid.UUID),
			OpportunityID: args[2].(uuid.UUID),
			Score:         args[3].(int),
			Factors: match.Factors{
				Skill:        args[4].(int),
				Experience:   args[5].(int),
				Availability: args[6].(int),
				Location:     args[7].(int),
				Interest:     args[8].(int),
			},
			Reasons:   args[9].([]string),
			Status:    match.Status(args[10].(string)),
			CreatedAt: args[11].(time.Time),
			UpdatedAt: args[12].(time.Time),
		}
		f.byID[m.ID] = m
		f.pair[key] = m.ID
		return 1, nil

	case strings.Contains(query, "SET status"):
		id := args[2].(uuid.UUID)
		m, ok := f.byID[id]
		if !ok {
			return 0, nil
		}
		m.Status = match.Status(args[0].(string))
		m.UpdatedAt = args[1].(time.Time)
		f.byID[id] = m
		return 1, nil

	case strings.Contains(query, "SET feedback_rating"):
		id := args[4].(uuid.UUID)
		m, ok := f.byID[id]
		if !ok {
			return 0, nil
		}
		m.Feedback = &match.Feedback{
			Rating:  args[0].(int),
			Comment: args[1].(string),
			Helpful: args[2].(bool),
		}
		m.UpdatedAt = args[3].(time.Time)
		f.byID[id] = m
		return 1, nil
	}
	return 0, fmt.Errorf("fakeDB: unexpected exec %q", query)
}

func (f *fakeDB) Query(_ context.Context, query string, args ...any) (database.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.Contains(query, "WHERE id ="):
		id := args[0].(uuid.UUID)
		if m, ok := f.byID[id]; ok {
			return &fakeRows{matches: []match.Match{m}}, nil
		}
		return &fakeRows{}, nil

	case strings.Contains(query, "ANY($2)"):
		anchor := args[0].(uuid.UUID)
		others := args[1].([]uuid.UUID)
		anchorIsSubject := strings.Contains(query, "subject_id = $1")
		ids := make([]uuid.UUID, 0)
		for _, other := range others {
			key := [2]uuid.UUID{anchor, other}
			if !anchorIsSubject {
				key = [2]uuid.UUID{other, anchor}
			}
			if _, ok := f.pair[key]; ok {
				ids = append(ids, other)
			}
		}
		return &fakeRows{ids: ids}, nil

	case strings.Contains(query, "ORDER BY score DESC"):
		bySubject := strings.Contains(query, "subject_id = $1")
		anchor := args[0].(uuid.UUID)
		minScore := args[1].(int)
		limit := args[2].(int)
		offset := args[3].(int)

		out := make([]match.Match, 0)
		for _, m := range f.byID {
			owner := m.SubjectID
			if !bySubject {
				owner = m.OpportunityID
			}
			if owner == anchor && m.Score >= minScore {
				out = append(out, m)
			}
		}
		for i := 0; i < len(out); i++ {
			for j := i + 1; j < len(out); j++ {
				if out[j].Score > out[i].Score ||
					(out[j].Score == out[i].Score && out[j].CreatedAt.After(out[i].CreatedAt)) {
					out[i], out[j] = out[j], out[i]
				}
			}
		}
		if offset > len(out) {
			offset = len(out)
		}
		out = out[offset:]
		if limit < len(out) {
			out = out[:limit]
		}
		return &fakeRows{matches: out}, nil
	}
	return nil, fmt.Errorf("fakeDB: unexpected query %q", query)
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	rows, err := f.Query(ctx, query, args...)
	if err != nil {
		return errRow{err: err}
	}
	if !rows.Next() {
		return errRow{err: errors.New("no rows")}
	}
	return rowAdapter{rows: rows}
}

func (f *fakeDB) Begin(context.Context) (database.Tx, error) {
	return fakeTx{db: f}, nil
}

type fakeTx struct {
	db *fakeDB
}

func (t fakeTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return t.db.Exec(ctx, query, args...)
}

func (t fakeTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return t.db.Query(ctx, query, args...)
}

func (t fakeTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return t.db.QueryRow(ctx, query, args...)
}

func (t fakeTx) Commit(context.Context) error   { return nil }
func (t fakeTx) Rollback(context.Context) error { return nil }

type fakeRows struct {
	matches []match.Match
	ids     []uuid.UUID
	idx     int
}

func (r *fakeRows) Close() {}
func (r *fakeRows) Err() error {
	return nil
}

func (r *fakeRows) Next() bool {
	n := len(r.matches)
	if r.ids != nil {
		n = len(r.ids)
	}
	if r.idx >= n {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.ids != nil {
		*(dest[0].(*uuid.UUID)) = r.ids[r.idx-1]
		return nil
	}

	m := r.matches[r.idx-1]
	if len(dest) != 16 {
		return fmt.Errorf("scan dest mismatch: %d", len(dest))
	}
	*(dest[0].(*uuid.UUID)) = m.ID
	*(dest[1].(*uuid.UUID)) = m.SubjectID
	*(dest[2].(*uuid.UUID)) = m.OpportunityID
	*(dest[3].(*int)) = m.Score
	*(dest[4].(*int)) = m.Factors.Skill
	*(dest[5].(*int)) = m.Factors.Experience
	*(dest[6].(*int)) = m.Factors.Availability
	*(dest[7].(*int)) = m.Factors.Location
	*(dest[8].(*int)) = m.Factors.Interest
	*(dest[9].(*[]string)) = m.Reasons
	*(dest[10].(*string)) = string(m.Status)
	if m.Feedback != nil {
		rating, comment, helpful := m.Feedback.Rating, m.Feedback.Comment, m.Feedback.Helpful
		*(dest[11].(**int)) = &rating
		*(dest[12].(**string)) = &comment
		*(dest[13].(**bool)) = &helpful
	} else {
		*(dest[11].(**int)) = nil
		*(dest[12].(**string)) = nil
		*(dest[13].(**bool)) = nil
	}
	*(dest[14].(*time.Time)) = m.CreatedAt
	*(dest[15].(*time.Time)) = m.UpdatedAt
	return nil
}

type rowAdapter struct {
	rows database.Rows
}

func (r rowAdapter) Scan(dest ...any) error { return r.rows.Scan(dest...) }

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error { return r.err }

func TestCreateIfAbsent_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresMatchRepository(newFakeDB())

	p := CreateMatchParams{
		SubjectID:     uuid.New(),
		OpportunityID: uuid.New(),
		Score:         72,
		Factors:       match.Factors{Skill: 90, Experience: 70, Availability: 50, Location: 50, Interest: 60},
		Reasons:       []string{"Strong skill fit: covers 3 of 3 required skills"},
	}

	first, created, err := repo.CreateIfAbsent(ctx, p)
	if err != nil || !created {
		t.Fatalf("first create = (%v, %v), want created", created, err)
	}
	if first.Status != match.StatusPending {
		t.Errorf("new match status = %s, want pending", first.Status)
	}

	_, created, err = repo.CreateIfAbsent(ctx, p)
	if err != nil {
		t.Fatalf("second create errored: %v", err)
	}
	if created {
		t.Error("second create for the same pair must be a no-op")
	}
}

func TestCreateIfAbsent_ConcurrentSamePair(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresMatchRepository(newFakeDB())

	p := CreateMatchParams{SubjectID: uuid.New(), OpportunityID: uuid.New(), Score: 40}

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := repo.CreateIfAbsent(ctx, p)
			if err != nil {
				t.Errorf("concurrent create errored: %v", err)
			}
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	createdCount := 0
	for c := range results {
		if c {
			createdCount++
		}
	}
	if createdCount != 1 {
		t.Errorf("created %d records for one pair, want exactly 1", createdCount)
	}
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresMatchRepository(newFakeDB())

	m, _, err := repo.CreateIfAbsent(ctx, CreateMatchParams{SubjectID: uuid.New(), OpportunityID: uuid.New(), Score: 55})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.TransitionStatus(ctx, m.ID, match.StatusViewed)
	if err != nil {
		t.Fatalf("pending->viewed: %v", err)
	}
	if got.Status != match.StatusViewed {
		t.Errorf("status = %s, want viewed", got.Status)
	}

	if _, err := repo.TransitionStatus(ctx, m.ID, match.StatusPending); !errors.Is(err, match.ErrInvalidTransition) {
		t.Errorf("viewed->pending err = %v, want ErrInvalidTransition", err)
	}

	if _, err := repo.TransitionStatus(ctx, m.ID, match.StatusRejected); err != nil {
		t.Fatalf("viewed->rejected: %v", err)
	}
	if _, err := repo.TransitionStatus(ctx, m.ID, match.StatusRejected); !errors.Is(err, match.ErrInvalidTransition) {
		t.Errorf("re-reject err = %v, want ErrInvalidTransition", err)
	}

	if _, err := repo.TransitionStatus(ctx, uuid.New(), match.StatusViewed); !errors.Is(err, match.ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestAttachFeedback(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresMatchRepository(newFakeDB())

	m, _, err := repo.CreateIfAbsent(ctx, CreateMatchParams{SubjectID: uuid.New(), OpportunityID: uuid.New(), Score: 44})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.TransitionStatus(ctx, m.ID, match.StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}

	got, err := repo.AttachFeedback(ctx, m.ID, match.Feedback{Rating: 4, Comment: "close, wrong stack", Helpful: true})
	if err != nil {
		t.Fatalf("attach on rejected match: %v", err)
	}
	if got.Feedback == nil || got.Feedback.Rating != 4 || !got.Feedback.Helpful {
		t.Errorf("feedback = %+v, want rating 4 helpful", got.Feedback)
	}
	if got.Status != match.StatusRejected {
		t.Errorf("feedback changed status to %s", got.Status)
	}

	if _, err := repo.AttachFeedback(ctx, uuid.New(), match.Feedback{Rating: 1}); !errors.Is(err, match.ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestListBySubject_SortAndFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresMatchRepository(newFakeDB())
	subject := uuid.New()

	for _, score := range []int{35, 90, 62} {
		if _, _, err := repo.CreateIfAbsent(ctx, CreateMatchParams{
			SubjectID:     subject,
			OpportunityID: uuid.New(),
			Score:         score,
		}); err != nil {
			t.Fatalf("create score %d: %v", score, err)
		}
	}

	got, err := repo.ListBySubject(ctx, subject, ListFilter{MinScore: 40})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (min score filter)", len(got))
	}
	if got[0].Score != 90 || got[1].Score != 62 {
		t.Errorf("order = [%d %d], want score descending", got[0].Score, got[1].Score)
	}
}

func TestExistingOpportunities(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgresMatchRepository(newFakeDB())

	subject := uuid.New()
	known := uuid.New()
	unknown := uuid.New()
	if _, _, err := repo.CreateIfAbsent(ctx, CreateMatchParams{SubjectID: subject, OpportunityID: known, Score: 50}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.ExistingOpportunities(ctx, subject, []uuid.UUID{known, unknown})
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	if _, ok := got[known]; !ok {
		t.Error("known pair missing from result")
	}
	if _, ok := got[unknown]; ok {
		t.Error("unknown pair reported as existing")
	}
}
