package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maplebear/saf-portal/internal/auth"
	"github.com/maplebear/saf-portal/internal/domain"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return p, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func queryPtr(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}

func queryBool(c *fiber.Ctx, key string) (*bool, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid boolean query parameter", map[string]any{key: val})
	}
	return &parsed, nil
}

func splitStatuses(raw string) ([]domain.TicketStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var statuses []domain.TicketStatus
	for _, part := range strings.Split(raw, ",") {
		status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part)))
		if !status.Valid() {
			return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": part})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func data(c *fiber.Ctx, status int, payload any) error {
	return c.Status(status).JSON(fiber.Map{"data": payload})
}
