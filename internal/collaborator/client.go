package collaborator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"talent-match/internal/domain/scoring"

	"github.com/google/uuid"
)

// Opportunity is the opportunity-side read model: its snapshot for scoring,
// its declared requirement spec, and the members already on the team (who
// must never be matched to it).
type Opportunity struct {
	Snapshot      scoring.Snapshot
	Spec          scoring.RequirementSpec
	TeamMemberIDs []uuid.UUID
}

// ProfileClient is the read interface onto the profile service that owns
// subjects and opportunities. This engine never writes through it.
type ProfileClient interface {
	GetSubject(ctx context.Context, id uuid.UUID) (scoring.Snapshot, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error)

	ListActiveOpportunities(ctx context.Context, limit int) ([]Opportunity, error)
	ListSubjectsBySkills(ctx context.Context, skills []string, limit int) ([]scoring.Snapshot, error)

	ListRecentSubjectIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
	ListRecentOpportunityIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type httpProfileClient struct {
	baseURL string
	client  *http.Client
}

func NewProfileClient(baseURL string, timeout time.Duration) (ProfileClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("empty profile service URL")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpProfileClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type subjectPayload struct {
	ID              uuid.UUID `json:"id"`
	Skills          []string  `json:"skills"`
	ExperienceLevel string    `json:"experience_level"`
	Availability    string    `json:"availability"`
	Location        string    `json:"location"`
	Interests       []string  `json:"interests"`
}

type opportunityPayload struct {
	ID             uuid.UUID   `json:"id"`
	RequiredSkills []string    `json:"required_skills"`
	OptionalSkills []string    `json:"optional_skills"`
	Difficulty     string      `json:"difficulty"`
	TimeCommitment string      `json:"time_commitment"`
	Location       string      `json:"location"`
	Category       string      `json:"category"`
	Tags           []string    `json:"tags"`
	TeamMemberIDs  []uuid.UUID `json:"team_member_ids"`
}

func (p subjectPayload) snapshot() scoring.Snapshot {
	return scoring.Snapshot{
		ID:              p.ID,
		Skills:          p.Skills,
		ExperienceLevel: p.ExperienceLevel,
		Availability:    p.Availability,
		Location:        p.Location,
		Interests:       p.Interests,
	}
}

func (p opportunityPayload) opportunity() Opportunity {
	return Opportunity{
		Snapshot: scoring.Snapshot{
			ID:       p.ID,
			Skills:   p.RequiredSkills,
			Location: p.Location,
		},
		Spec: scoring.RequirementSpec{
			RequiredSkills: p.RequiredSkills,
			OptionalSkills: p.OptionalSkills,
			ExperienceTier: p.Difficulty,
			TimeCommitment: p.TimeCommitment,
			Location:       p.Location,
			Category:       p.Category,
			Tags:           p.Tags,
		},
		TeamMemberIDs: p.TeamMemberIDs,
	}
}

func (c *httpProfileClient) GetSubject(ctx context.Context, id uuid.UUID) (scoring.Snapshot, error) {
	var p subjectPayload
	if err := c.getJSON(ctx, "/subjects/"+id.String(), nil, &p); err != nil {
		return scoring.Snapshot{}, err
	}
	return p.snapshot(), nil
}

func (c *httpProfileClient) GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error) {
	var p opportunityPayload
	if err := c.getJSON(ctx, "/opportunities/"+id.String(), nil, &p); err != nil {
		return Opportunity{}, err
	}
	return p.opportunity(), nil
}

func (c *httpProfileClient) ListActiveOpportunities(ctx context.Context, limit int) ([]Opportunity, error) {
	q := url.Values{"active": {"true"}, "limit": {strconv.Itoa(limit)}}
	var ps []opportunityPayload
	if err := c.getJSON(ctx, "/opportunities", q, &ps); err != nil {
		return nil, err
	}
	out := make([]Opportunity, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.opportunity())
	}
	return out, nil
}

func (c *httpProfileClient) ListSubjectsBySkills(ctx context.Context, skills []string, limit int) ([]scoring.Snapshot, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if len(skills) > 0 {
		q.Set("skills", strings.Join(skills, ","))
	}
	var ps []subjectPayload
	if err := c.getJSON(ctx, "/subjects", q, &ps); err != nil {
		return nil, err
	}
	out := make([]scoring.Snapshot, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.snapshot())
	}
	return out, nil
}

func (c *httpProfileClient) ListRecentSubjectIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	return c.listRecentIDs(ctx, "/subjects/recent", since, limit)
}

func (c *httpProfileClient) ListRecentOpportunityIDs(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	return c.listRecentIDs(ctx, "/opportunities/recent", since, limit)
}

func (c *httpProfileClient) listRecentIDs(ctx context.Context, path string, since time.Time, limit int) ([]uuid.UUID, error) {
	q := url.Values{
		"since": {since.UTC().Format(time.RFC3339)},
		"limit": {strconv.Itoa(limit)},
	}
	var ids []uuid.UUID
	if err := c.getJSON(ctx, path, q, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *httpProfileClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if c == nil || c.client == nil {
		return errors.New("nil profile client")
	}

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("profile service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("profile service: %s returned %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("profile service: decode %s: %w", path, err)
	}
	return nil
}
