package scoring

import (
	"fmt"
	"math"
	"strings"

	"talent-match/internal/domain/match"

	"github.com/google/uuid"
)

// Snapshot is the read-only attribute bag fetched from the profile service
// at scoring time. The same shape serves both sides of a pair.
type Snapshot struct {
	ID              uuid.UUID
	Skills          []string
	ExperienceLevel string
	Availability    string
	Location        string
	Interests       []string
}

// RequirementSpec is the opportunity's declared demand: what it needs, what
// it would like, and how hard it is.
type RequirementSpec struct {
	RequiredSkills []string
	OptionalSkills []string
	ExperienceTier string
	TimeCommitment string
	Location       string
	Category       string
	Tags           []string
}

type Weights struct {
	Skill        float64
	Experience   float64
	Availability float64
	Location     float64
	Interest     float64
}

func DefaultWeights() Weights {
	return Weights{
		Skill:        0.40,
		Experience:   0.20,
		Availability: 0.15,
		Location:     0.10,
		Interest:     0.15,
	}
}

func (w Weights) Sum() float64 {
	return w.Skill + w.Experience + w.Availability + w.Location + w.Interest
}

type Result struct {
	Score   int
	Factors match.Factors
	Reasons []string
}

// Neutral is the sub-score used whenever a factor's inputs are absent, so
// missing upstream data dilutes a score instead of zeroing it.
const Neutral = 50

// Per-level penalty of the experience distance curve: 100 at distance 0,
// down to 0 at distance 4 and beyond.
const experiencePenaltyPerLevel = 30

// Disclosure thresholds: a factor at or above its threshold contributes one
// reason string, in factor declaration order.
const (
	skillReasonThreshold        = 80
	experienceReasonThreshold   = 90
	availabilityReasonThreshold = 80
	locationReasonThreshold     = 90
	interestReasonThreshold     = 70
)

var experienceTiers = map[string]int{
	"beginner":     1,
	"intermediate": 2,
	"advanced":     3,
	"expert":       4,
}

var availabilityScores = map[string]int{
	"full-time":   100,
	"flexible":    90,
	"part-time":   75,
	"evenings":    50,
	"weekends":    50,
	"unavailable": 10,
}

// Engine computes compatibility scores. It holds only immutable weight
// configuration, so a single instance is safe for concurrent use.
type Engine struct {
	weights Weights
}

func NewEngine(w Weights) (*Engine, error) {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return nil, fmt.Errorf("factor weights must sum to 1.0, got %.4f", w.Sum())
	}
	return &Engine{weights: w}, nil
}

// Score computes the weighted compatibility of a subject against an
// opportunity. Pure: no I/O, no mutation of its inputs.
func (e *Engine) Score(subject, opportunity Snapshot, spec RequirementSpec) Result {
	f := match.Factors{
		Skill:        skillFactor(subject.Skills, spec),
		Experience:   experienceFactor(subject.ExperienceLevel, spec.ExperienceTier),
		Availability: availabilityFactor(subject.Availability, spec.TimeCommitment),
		Location:     locationFactor(subject.Location, specLocation(spec, opportunity)),
		Interest:     interestFactor(subject.Interests, spec),
	}

	weighted := e.weights.Skill*float64(f.Skill) +
		e.weights.Experience*float64(f.Experience) +
		e.weights.Availability*float64(f.Availability) +
		e.weights.Location*float64(f.Location) +
		e.weights.Interest*float64(f.Interest)

	score := int(math.Round(weighted))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{
		Score:   score,
		Factors: f,
		Reasons: reasons(f, subject, spec),
	}
}

func specLocation(spec RequirementSpec, opportunity Snapshot) string {
	if strings.TrimSpace(spec.Location) != "" {
		return spec.Location
	}
	return opportunity.Location
}

// skillFactor blends required and optional coverage 70/30, with optional
// coverage acting as a pure bonus: a subject covering every required skill
// scores 100 whether or not any optional skill matches. Zero declared
// required skills pins the factor at 0 ("no skill requirement").
func skillFactor(subjectSkills []string, spec RequirementSpec) int {
	required := normalizeSet(spec.RequiredSkills)
	if len(required) == 0 {
		return 0
	}
	have := normalizeSet(subjectSkills)

	reqRatio := overlapRatio(required, have)
	optRatio := 0.0
	if optional := normalizeSet(spec.OptionalSkills); len(optional) > 0 {
		optRatio = overlapRatio(optional, have)
	}

	blended := 0.7*reqRatio + 0.3*optRatio
	if blended < reqRatio {
		blended = reqRatio
	}
	return int(math.Round(blended * 100))
}

func experienceFactor(subjectLevel, opportunityTier string) int {
	s, okS := experienceTiers[normalize(subjectLevel)]
	o, okO := experienceTiers[normalize(opportunityTier)]
	if !okS || !okO {
		return Neutral
	}
	dist := s - o
	if dist < 0 {
		dist = -dist
	}
	score := 100 - experiencePenaltyPerLevel*dist
	if score < 0 {
		score = 0
	}
	return score
}

func availabilityFactor(subjectClass, expected string) int {
	class := normalize(subjectClass)
	if class == "" {
		return Neutral
	}
	if expected != "" && class == normalize(expected) {
		return 100
	}
	score, ok := availabilityScores[class]
	if !ok {
		return Neutral
	}
	return score
}

func locationFactor(subjectLoc, opportunityLoc string) int {
	a := normalize(subjectLoc)
	b := normalize(opportunityLoc)
	if a == "" || b == "" {
		return Neutral
	}
	if a == b {
		return 100
	}

	at := locationTokens(a)
	bt := locationTokens(b)
	if len(at) == 0 || len(bt) == 0 {
		return Neutral
	}

	matched := 0
	for tok := range at {
		if _, ok := bt[tok]; ok {
			matched++
		}
	}
	denom := len(at)
	if len(bt) > denom {
		denom = len(bt)
	}
	return int(math.Round(float64(matched) / float64(denom) * 100))
}

// interestFactor gives category membership the majority share (60) and tag
// overlap the remainder (40). Absent preference data on either side is
// neutral, never a penalty.
func interestFactor(interests []string, spec RequirementSpec) int {
	declared := normalizeSet(interests)
	category := normalize(spec.Category)
	tags := normalizeSet(spec.Tags)

	if len(declared) == 0 {
		return Neutral
	}
	if category == "" && len(tags) == 0 {
		return Neutral
	}

	score := 0.0
	if category != "" {
		if _, ok := declared[category]; ok {
			score += 60
		}
	}
	if len(tags) > 0 {
		score += 40 * overlapRatio(tags, declared)
	}
	return int(math.Round(score))
}

func reasons(f match.Factors, subject Snapshot, spec RequirementSpec) []string {
	out := make([]string, 0, 5)

	if f.Skill >= skillReasonThreshold {
		matched := 0
		have := normalizeSet(subject.Skills)
		required := normalizeSet(spec.RequiredSkills)
		for s := range required {
			if _, ok := have[s]; ok {
				matched++
			}
		}
		out = append(out, fmt.Sprintf("Strong skill fit: covers %d of %d required skills", matched, len(required)))
	}
	if f.Experience >= experienceReasonThreshold {
		out = append(out, "Experience level matches the opportunity difficulty")
	}
	if f.Availability >= availabilityReasonThreshold {
		out = append(out, fmt.Sprintf("Availability (%s) suits this opportunity", strings.TrimSpace(subject.Availability)))
	}
	if f.Location >= locationReasonThreshold {
		out = append(out, fmt.Sprintf("Location aligns: %s", strings.TrimSpace(subject.Location)))
	}
	if f.Interest >= interestReasonThreshold {
		out = append(out, "Declared interests align with the opportunity focus")
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		n := normalize(it)
		if n == "" {
			continue
		}
		out[n] = struct{}{}
	}
	return out
}

func overlapRatio(want, have map[string]struct{}) float64 {
	if len(want) == 0 {
		return 0
	}
	matched := 0
	for s := range want {
		if _, ok := have[s]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(want))
}

func locationTokens(s string) map[string]struct{} {
	parts := strings.Split(s, ",")
	out := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out[p] = struct{}{}
	}
	return out
}
