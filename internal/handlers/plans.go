package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hopin-service/internal/models"
	"hopin-service/internal/observability"
	"hopin-service/internal/plans"
	"hopin-service/internal/repositories"
	"hopin-service/internal/telemetry"
)

type planService interface {
	Create(ctx context.Context, creatorID string, input plans.CreateInput) (models.Plan, error)
	Get(ctx context.Context, planID string) (models.Plan, error)
	Members(ctx context.Context, callerID, planID string) ([]models.PlanMember, error)
	Update(ctx context.Context, callerID, planID string, input plans.UpdateInput) (models.Plan, error)
	Delete(ctx context.Context, callerID, planID string) error
	RequestToJoin(ctx context.Context, callerID, planID string) (models.PlanMember, error)
	InviteUsers(ctx context.Context, callerID, planID string, userIDs []string) (plans.InviteResult, error)
	ManageRequest(ctx context.Context, callerID, planID, memberID string, accept bool) (models.PlanMember, error)
	RespondToInvite(ctx context.Context, callerID, planID string, accept bool) (models.PlanMember, error)
	VerifyAttendee(ctx context.Context, callerID, planID, code string) (plans.VerifyResult, error)
}

// PlanHandler manages plan lifecycle endpoints.
type PlanHandler struct {
	service planService
	audit   *telemetry.AuditEmitter
}

// NewPlanHandler builds a PlanHandler.
func NewPlanHandler(service planService, audit *telemetry.AuditEmitter) *PlanHandler {
	return &PlanHandler{service: service, audit: audit}
}

type planRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Type        string    `json:"type" binding:"required,oneof=SOLO COMMUNITY"`
	Visibility  string    `json:"visibility" binding:"required,oneof=PRIVATE FOLLOWERS PUBLIC"`
	Location    string    `json:"location"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Date        time.Time `json:"date" binding:"required"`
	MaxSize     int       `json:"max_size"`
	Status      string    `json:"status"`
}

// CreatePlan handles POST /plans. The creator becomes an accepted, verified
// member in the same transaction.
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	userID := c.GetString("userID")

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.service.Create(c.Request.Context(), userID, plans.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Visibility:  req.Visibility,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Date:        req.Date,
		MaxSize:     req.MaxSize,
	})
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create plan"})
		return
	}

	observability.IncPlanTransition("created")
	h.emitAudit(c, "INFO", "Plan created")
	c.JSON(http.StatusCreated, plan)
}

// GetPlan handles GET /plans/:plan_id.
func (h *PlanHandler) GetPlan(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), c.Param("plan_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// ListMembers handles GET /plans/:plan_id/members (creator only).
func (h *PlanHandler) ListMembers(c *gin.Context) {
	userID := c.GetString("userID")
	members, err := h.service.Members(c.Request.Context(), userID, c.Param("plan_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if members == nil {
		members = []models.PlanMember{}
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// UpdatePlan handles PUT /plans/:plan_id (creator only).
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	userID := c.GetString("userID")

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.service.Update(c.Request.Context(), userID, c.Param("plan_id"), plans.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Visibility:  req.Visibility,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Date:        req.Date,
		MaxSize:     req.MaxSize,
		Status:      req.Status,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Plan updated")
	c.JSON(http.StatusOK, plan)
}

// DeletePlan handles DELETE /plans/:plan_id (creator only).
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.service.Delete(c.Request.Context(), userID, c.Param("plan_id")); err != nil {
		h.respondError(c, err)
		return
	}

	observability.IncPlanTransition("deleted")
	h.emitAudit(c, "INFO", "Plan deleted")
	c.Status(http.StatusNoContent)
}

// RequestToJoin handles POST /plans/:plan_id/join.
func (h *PlanHandler) RequestToJoin(c *gin.Context) {
	userID := c.GetString("userID")
	member, err := h.service.RequestToJoin(c.Request.Context(), userID, c.Param("plan_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	observability.IncPlanTransition("requested")
	h.emitAudit(c, "INFO", "Join request created")
	c.JSON(http.StatusCreated, member)
}

// InviteUsers handles POST /plans/:plan_id/invites (creator only).
func (h *PlanHandler) InviteUsers(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		UserIDs []string `json:"user_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.InviteUsers(c.Request.Context(), userID, c.Param("plan_id"), req.UserIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	observability.IncPlanTransition("invited")
	h.emitAudit(c, "INFO", "Users invited")
	c.JSON(http.StatusOK, result)
}

// ManageRequest handles POST /plans/:plan_id/requests/:member_id (creator
// only). Accepting issues a verification code.
func (h *PlanHandler) ManageRequest(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.service.ManageRequest(c.Request.Context(), userID, c.Param("plan_id"), c.Param("member_id"), *req.Accept)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if *req.Accept {
		observability.IncPlanTransition("accepted")
	} else {
		observability.IncPlanTransition("rejected")
	}
	h.emitAudit(c, "INFO", "Join request managed")
	c.JSON(http.StatusOK, member)
}

// RespondToInvite handles POST /plans/:plan_id/respond (invitee only).
func (h *PlanHandler) RespondToInvite(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.service.RespondToInvite(c.Request.Context(), userID, c.Param("plan_id"), *req.Accept)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if *req.Accept {
		observability.IncPlanTransition("accepted")
	} else {
		observability.IncPlanTransition("rejected")
	}
	h.emitAudit(c, "INFO", "Invite answered")
	c.JSON(http.StatusOK, member)
}

// VerifyAttendee handles POST /plans/:plan_id/verify (creator only).
// Re-scanning a redeemed ticket succeeds and reports already_verified.
func (h *PlanHandler) VerifyAttendee(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.VerifyAttendee(c.Request.Context(), userID, c.Param("plan_id"), req.Code)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !result.AlreadyVerified {
		observability.IncPlanTransition("verified")
	}
	h.emitAudit(c, "INFO", "Attendee verified")
	c.JSON(http.StatusOK, result)
}

func (h *PlanHandler) respondError(c *gin.Context, err error) {
	var dup *plans.DuplicateMemberError
	switch {
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{"error": dup.Error(), "status": dup.Status})
	case errors.Is(err, plans.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
	case errors.Is(err, repositories.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
	case errors.Is(err, repositories.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan member not found"})
	case errors.Is(err, plans.ErrInvalidCode):
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid verification code"})
	case errors.Is(err, plans.ErrPlanNotOpen), errors.Is(err, plans.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
