package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

// parsePageParams reads page/limit query parameters, clamping the limit so a
// single request cannot pull an unbounded result set.
func parsePageParams(c *fiber.Ctx) (page, limit int) {
	page = parsePositiveInt(c.Query("page"), 1)
	limit = parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func buildPaginationMeta(page, limit, total int) models.PaginationMeta {
	meta := models.PaginationMeta{Page: page, Limit: limit, Total: total}
	if total > 0 {
		meta.TotalPages = (total + limit - 1) / limit
	}
	return meta
}
