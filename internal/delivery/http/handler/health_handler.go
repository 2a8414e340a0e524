package handler

import (
	"context"

	"talent-match/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis Pinger
}

func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.Check)
}

func (h *HealthHandler) Check(c fiber.Ctx) error {
	checks := fiber.Map{
		"database": h.check(c.Context(), h.db),
		"broker":   h.check(c.Context(), h.redis),
	}

	for _, v := range checks {
		if v != "ok" {
			return response.Error(c, fiber.StatusServiceUnavailable, "Service unavailable", checks)
		}
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, checks)
}

func (h *HealthHandler) check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "skipped"
	}
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
