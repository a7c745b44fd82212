package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// actorFromLocals reads the authenticated identity the auth middleware parked
// on the request.
func actorFromLocals(c *fiber.Ctx) (int64, string, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, "", strconv.ErrSyntax
	}
	role, ok := c.Locals("role").(string)
	if !ok {
		return 0, "", strconv.ErrSyntax
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return userID, role, nil
}

// requireRole is the shared authorization gate: it resolves the actor and
// checks the role against the allowed set. A nil allowed set admits any
// authenticated role.
func requireRole(c *fiber.Ctx, allowed ...string) (int64, string, bool) {
	userID, role, err := actorFromLocals(c)
	if err != nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		return 0, "", false
	}
	if len(allowed) == 0 {
		return userID, role, true
	}
	for _, candidate := range allowed {
		if role == candidate {
			return userID, role, true
		}
	}
	_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	return 0, "", false
}
