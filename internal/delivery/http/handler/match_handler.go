package handler

import (
	"errors"
	"strconv"

	"talent-match/internal/delivery/http/dto"
	"talent-match/internal/delivery/http/middleware"
	"talent-match/internal/domain/match"
	"talent-match/internal/pkg/response"
	"talent-match/internal/repository"
	"talent-match/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type MatchHandler struct {
	uc usecase.MatchUsecase
}

func NewMatchHandler(uc usecase.MatchUsecase) *MatchHandler {
	return &MatchHandler{uc: uc}
}

func (h *MatchHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Get("/subjects/:subject_id/matches", h.ListForSubject)
	r.Post("/subjects/:subject_id/matches/generate", h.GenerateForSubject)
	r.Get("/opportunities/:opportunity_id/matches", h.ListForOpportunity)
	r.Post("/opportunities/:opportunity_id/matches/generate", h.GenerateForOpportunity)
	r.Patch("/matches/:match_id/status", h.UpdateStatus)
	r.Post("/matches/:match_id/feedback", h.AttachFeedback)
}

func (h *MatchHandler) ListForSubject(c fiber.Ctx) error {
	subjectID, err := uuid.Parse(c.Params("subject_id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid subject id", nil, err)
	}

	filter, err := parseListFilter(c)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	items, err := h.uc.ListForSubject(c.Context(), subjectID, filter)
	if err != nil {
		return mapMatchUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.FromMatches(items))
}

func (h *MatchHandler) ListForOpportunity(c fiber.Ctx) error {
	opportunityID, err := uuid.Parse(c.Params("opportunity_id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid opportunity id", nil, err)
	}

	filter, err := parseListFilter(c)
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	items, err := h.uc.ListForOpportunity(c.Context(), opportunityID, filter)
	if err != nil {
		return mapMatchUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.FromMatches(items))
}

func (h *MatchHandler) GenerateForSubject(c fiber.Ctx) error {
	subjectID, err := uuid.Parse(c.Params("subject_id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid subject id", nil, err)
	}

	summary, err := h.uc.RegenerateForSubject(c.Context(), subjectID)
	if err != nil {
		return mapMatchUsecaseError(err)
	}
	return response.Success(c, fiber.StatusAccepted, response.MessageAccepted, dto.FromSummary(summary))
}

func (h *MatchHandler) GenerateForOpportunity(c fiber.Ctx) error {
	opportunityID, err := uuid.Parse(c.Params("opportunity_id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid opportunity id", nil, err)
	}

	summary, err := h.uc.RegenerateForOpportunity(c.Context(), opportunityID)
	if err != nil {
		return mapMatchUsecaseError(err)
	}
	return response.Success(c, fiber.StatusAccepted, response.MessageAccepted, dto.FromSummary(summary))
}

func (h *MatchHandler) UpdateStatus(c fiber.Ctx) error {
	matchID, err := uuid.Parse(c.Params("match_id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid match id", nil, err)
	}

	var req dto.UpdateStatusRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	updated, err := h.uc.UpdateStatus(c.Context(), matchID, req.Status)
	if err != nil {
		return mapMatchUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.FromMatch(updated))
}

func (h *MatchHandler) AttachFeedback(c fiber.Ctx) error {
	matchID, err := uuid.Parse(c.Params("match_id"))
	if err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Invalid match id", nil, err)
	}

	var req dto.AttachFeedbackRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	updated, err := h.uc.AttachFeedback(c.Context(), matchID, match.Feedback{
		Rating:  req.Rating,
		Comment: req.Comment,
		Helpful: req.Helpful,
	})
	if err != nil {
		return mapMatchUsecaseError(err)
	}
	return response.Success(c, fiber.StatusCreated, response.MessageCreated, dto.FromMatch(updated))
}

func parseListFilter(c fiber.Ctx) (repository.ListFilter, error) {
	var f repository.ListFilter
	var err error

	if f.MinScore, err = parseQueryInt(c, "min_score", 0); err != nil {
		return f, err
	}
	if f.Limit, err = parseQueryInt(c, "limit", 0); err != nil {
		return f, err
	}
	if f.Offset, err = parseQueryInt(c, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

func parseQueryInt(c fiber.Ctx, key string, defaultVal int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func mapMatchUsecaseError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, match.ErrNotFound):
		return middleware.NewAppError(fiber.StatusNotFound, "Match not found", nil, err)
	case errors.Is(err, match.ErrInvalidTransition):
		return middleware.NewAppError(fiber.StatusConflict, "Invalid status transition", nil, err)
	case errors.Is(err, usecase.ErrInvalidID):
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	case errors.Is(err, usecase.ErrInvalidStatus):
		return middleware.NewAppError(fiber.StatusUnprocessableEntity, "Unknown status value", nil, err)
	case errors.Is(err, usecase.ErrInvalidRating):
		return middleware.NewAppError(fiber.StatusUnprocessableEntity, "Rating must be between 1 and 5", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
