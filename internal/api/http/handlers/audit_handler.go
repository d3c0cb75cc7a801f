package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/maplebear/saf-portal/internal/api/dto"
	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/repository"
	"github.com/maplebear/saf-portal/internal/service"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

// AuditHandler serves the audit panel.
type AuditHandler struct {
	audit     *service.AuditService
	approvals *service.ApprovalService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(audit *service.AuditService, approvals *service.ApprovalService) *AuditHandler {
	return &AuditHandler{audit: audit, approvals: approvals}
}

// ListRecords GET /audit.
func (h *AuditHandler) ListRecords(c *fiber.Ctx) error {
	filter, err := parseAuditFilter(c)
	if err != nil {
		return err
	}
	records, err := h.audit.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	return data(c, http.StatusOK, records)
}

// Stats GET /audit/stats.
func (h *AuditHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.audit.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, stats)
}

// GetRecord GET /audit/:id.
func (h *AuditHandler) GetRecord(c *fiber.Ctx) error {
	record, err := h.audit.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, record)
}

// CreateRecord POST /audit.
func (h *AuditHandler) CreateRecord(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateAuditRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	record, err := h.audit.Record(c.UserContext(), p.Actor(), service.AuditInput{
		ActionType:       req.ActionType,
		Action:           req.Action,
		Description:      req.Description,
		TargetEntity:     req.TargetEntity,
		TargetID:         req.TargetID,
		Justification:    req.Justification,
		Priority:         req.Priority,
		RequiresApproval: req.RequiresApproval,
		Details:          req.Details,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, record)
}

// Approve POST /audit/:id/approve.
func (h *AuditHandler) Approve(c *fiber.Ctx) error {
	return h.decide(c, true)
}

// Reject POST /audit/:id/reject.
func (h *AuditHandler) Reject(c *fiber.Ctx) error {
	return h.decide(c, false)
}

func (h *AuditHandler) decide(c *fiber.Ctx, approve bool) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	var record *domain.AuditRecord
	if approve {
		record, err = h.approvals.Approve(c.UserContext(), p.Actor(), c.Params("id"), req.Notes)
	} else {
		record, err = h.approvals.Reject(c.UserContext(), p.Actor(), c.Params("id"), req.Notes)
	}
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, record)
}

func parseAuditFilter(c *fiber.Ctx) (repository.AuditFilter, error) {
	filter := repository.AuditFilter{
		TargetID:   queryPtr(c, "target_id"),
		SearchTerm: queryPtr(c, "search"),
	}
	if raw := queryPtr(c, "action_type"); raw != nil {
		kind := domain.AuditActionType(strings.ToLower(*raw))
		if !kind.Valid() {
			return filter, apperrors.NewValidationError("unknown action type", map[string]any{"action_type": *raw})
		}
		filter.ActionType = &kind
	}
	if raw := queryPtr(c, "status"); raw != nil {
		status := domain.AuditStatus(strings.ToLower(*raw))
		switch status {
		case domain.AuditStatusPending, domain.AuditStatusApproved, domain.AuditStatusRejected:
			filter.Status = &status
		default:
			return filter, apperrors.NewValidationError("unknown audit status", map[string]any{"status": *raw})
		}
	}
	if raw := queryPtr(c, "since"); raw != nil {
		since, err := time.Parse(time.RFC3339, *raw)
		if err != nil {
			return filter, apperrors.NewValidationError("since must be RFC3339", map[string]any{"since": *raw})
		}
		filter.Since = &since
	}
	return filter, nil
}
