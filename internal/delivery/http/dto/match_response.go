package dto

import (
	"time"

	"talent-match/internal/domain/match"
	"talent-match/internal/pipeline"

	"github.com/google/uuid"
)

type FactorsResponse struct {
	Skill        int `json:"skill"`
	Experience   int `json:"experience"`
	Availability int `json:"availability"`
	Location     int `json:"location"`
	Interest     int `json:"interest"`
}

type FeedbackResponse struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
	Helpful bool   `json:"helpful"`
}

type MatchResponse struct {
	ID            uuid.UUID         `json:"id"`
	SubjectID     uuid.UUID         `json:"subject_id"`
	OpportunityID uuid.UUID         `json:"opportunity_id"`
	Score         int               `json:"score"`
	Factors       FactorsResponse   `json:"factors"`
	Reasons       []string          `json:"reasons"`
	Status        string            `json:"status"`
	Feedback      *FeedbackResponse `json:"feedback,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func FromMatch(m match.Match) MatchResponse {
	out := MatchResponse{
		ID:            m.ID,
		SubjectID:     m.SubjectID,
		OpportunityID: m.OpportunityID,
		Score:         m.Score,
		Factors: FactorsResponse{
			Skill:        m.Factors.Skill,
			Experience:   m.Factors.Experience,
			Availability: m.Factors.Availability,
			Location:     m.Factors.Location,
			Interest:     m.Factors.Interest,
		},
		Reasons:   m.Reasons,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if out.Reasons == nil {
		out.Reasons = []string{}
	}
	if m.Feedback != nil {
		out.Feedback = &FeedbackResponse{
			Rating:  m.Feedback.Rating,
			Comment: m.Feedback.Comment,
			Helpful: m.Feedback.Helpful,
		}
	}
	return out
}

func FromMatches(ms []match.Match) []MatchResponse {
	out := make([]MatchResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, FromMatch(m))
	}
	return out
}

type GenerationSummaryResponse struct {
	TriggerSide string    `json:"trigger_side"`
	TriggerID   uuid.UUID `json:"trigger_id"`
	Candidates  int       `json:"candidates"`
	Created     int       `json:"created"`
	Failed      int       `json:"failed"`
}

func FromSummary(s pipeline.Summary) GenerationSummaryResponse {
	return GenerationSummaryResponse{
		TriggerSide: s.TriggerSide,
		TriggerID:   s.TriggerID,
		Candidates:  s.Candidates,
		Created:     s.Created,
		Failed:      s.Failed,
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AttachFeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
	Helpful bool   `json:"helpful"`
}
