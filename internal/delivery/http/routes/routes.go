package routes

import (
	"talent-match/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	health *handler.HealthHandler
	match  *handler.MatchHandler
}

func NewRegistry(health *handler.HealthHandler, match *handler.MatchHandler) *Registry {
	return &Registry{health: health, match: match}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	r.health.RegisterRoutes(app)
	r.match.RegisterRoutes(app.Group("/api").Group("/v1"))
}
