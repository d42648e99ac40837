package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowcanvas/flowcanvas/pkg/llm"
	"github.com/flowcanvas/flowcanvas/pkg/quota"
	"github.com/flowcanvas/flowcanvas/pkg/storage"
)

// defaultUsageType labels entries recorded without an explicit type.
const defaultUsageType = "diagram_turn"

// usageResponse is the GET /api/usage body.
type usageResponse struct {
	Stats  storage.Stats `json:"stats"`
	Limits usageLimits   `json:"limits"`
}

type usageLimits struct {
	CanUse         bool       `json:"canUse"`
	Reason         string     `json:"reason,omitempty"`
	RemainingUsage int        `json:"remainingUsage"`
	Limit          int        `json:"limit"`
	ResetsAt       *time.Time `json:"resetsAt,omitempty"`
}

// recordRequest is the POST /api/usage/record body.
type recordRequest struct {
	Type     string         `json:"type"`
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type recordResponse struct {
	Recorded     bool   `json:"recorded"`
	LimitReached bool   `json:"limitReached,omitempty"`
	EntryID      string `json:"entryId,omitempty"`
}

// handleUsage reports the caller's usage breakdown and current admission
// state. Anonymous callers have no account to report on.
func (s *Server) handleUsage(c *fiber.Ctx) error {
	identity, authenticated := resolveIdentity(c)
	if !authenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "authentication required"})
	}

	now := time.Now()

	stats, err := s.ledger.StatsFor(c.Context(), identity.Key, now)
	if err != nil {
		s.logger.Error("usage stats query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "usage stats query failed"})
	}

	decision, err := s.evaluateQuota(c.Context(), identity)
	if err != nil {
		s.logger.Error("quota evaluation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "quota evaluation failed"})
	}

	limits := usageLimits{
		CanUse:         decision.Allowed,
		RemainingUsage: decision.Remaining,
		Limit:          decision.Limit,
		ResetsAt:       decision.ResetsAt,
	}
	if !decision.Allowed {
		limits.Reason = "Monthly usage limit reached"
	}

	return c.JSON(usageResponse{Stats: *stats, Limits: limits})
}

// handleUsageRecord appends one usage entry to the ledger. Successful entries
// go through the atomic conditional append so the ledger can never exceed the
// identity's limit even under concurrent recording; failed entries are kept
// for diagnostics but never count against quota.
func (s *Server) handleUsageRecord(c *fiber.Ctx) error {
	var req recordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.Type == "" {
		req.Type = defaultUsageType
	}

	identity, _ := resolveIdentity(c)
	now := time.Now()

	entry := &storage.Entry{
		ID:          uuid.NewString(),
		IdentityKey: identity.Key,
		Type:        req.Type,
		Success:     req.Success,
		Metadata:    req.Metadata,
		CreatedAt:   now,
	}

	if !req.Success {
		if err := s.ledger.Append(c.Context(), entry); err != nil {
			s.logger.Error("usage append failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "usage record failed"})
		}
		return c.JSON(recordResponse{Recorded: true, EntryID: entry.ID})
	}

	policy := quota.PolicyFor(identity.Class)
	since := quota.WindowStart(policy.WindowKind, now)

	inserted, err := s.ledger.AppendIfUnder(c.Context(), entry, since, policy.Limit)
	if err != nil {
		s.logger.Error("usage append failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "usage record failed"})
	}
	if !inserted {
		return c.Status(fiber.StatusTooManyRequests).JSON(recordResponse{Recorded: false, LimitReached: true})
	}

	return c.JSON(recordResponse{Recorded: true, EntryID: entry.ID})
}
