package handlers

import (
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/tasks"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// TierHandlerInterface defines admin endpoints for tier reclassification
type TierHandlerInterface interface {
	UpgradeAccount(c fiber.Ctx) error
	Sweep(c fiber.Ctx) error
	Benefits(c fiber.Ctx) error
}

type TierHandler struct {
	submitter      WorkUnitSubmitter
	flow           businessflow.TierUpgradeFlow
	sweepBatchSize int
	validator      *validator.Validate
	logger         *zap.Logger
}

func NewTierHandler(submitter WorkUnitSubmitter, flow businessflow.TierUpgradeFlow, sweepBatchSize int, logger *zap.Logger) TierHandlerInterface {
	return &TierHandler{
		submitter:      submitter,
		flow:           flow,
		sweepBatchSize: sweepBatchSize,
		validator:      validator.New(),
		logger:         logger,
	}
}

// UpgradeAccount queues a reclassification of one account
// @Summary Reclassify account tier
// @Tags Admin Tiers
// @Accept json
// @Produce json
// @Param id path int true "Account ID"
// @Param request body dto.TierUpgradeRequest false "Reason"
// @Success 202 {object} dto.APIResponse{data=dto.WorkUnitResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/accounts/{id}/tier [post]
func (h *TierHandler) UpgradeAccount(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid account id", "INVALID_REQUEST", nil)
	}
	var req dto.TierUpgradeRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}
	reason := models.TierChangeReason(req.Reason)
	if reason == "" {
		reason = models.TierChangeReasonManual
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/accounts/:id/tier")
	defer cancel()
	unit, err := h.submitter.Submit(ctx, tasks.UpgradeAccountTier{AccountID: id, Reason: reason})
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return accepted(c, unit)
}

// Sweep queues a reclassification of every account with recent investment activity
// @Summary Sweep tier upgrades
// @Tags Admin Tiers
// @Accept json
// @Produce json
// @Param request body dto.TierSweepRequest true "Sweep window"
// @Success 202 {object} dto.APIResponse{data=dto.WorkUnitResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/tiers/sweep [post]
func (h *TierHandler) Sweep(c fiber.Ctx) error {
	var req dto.TierSweepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}
	batchSize := h.sweepBatchSize
	if req.BatchSize > 0 {
		batchSize = req.BatchSize
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/tiers/sweep")
	defer cancel()
	unit, err := h.submitter.Submit(ctx, tasks.SweepTierUpgrades{Since: req.Since.In(time.UTC), BatchSize: batchSize})
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return accepted(c, unit)
}

// Benefits returns the benefit snapshot cached for an account's tier
// @Summary Get account benefits
// @Tags Admin Tiers
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} dto.APIResponse{data=dto.BenefitsResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/accounts/{id}/benefits [get]
func (h *TierHandler) Benefits(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid account id", "INVALID_REQUEST", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/accounts/:id/benefits")
	defer cancel()
	benefits, err := h.flow.Benefits(ctx, id)
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return c.JSON(dto.APIResponse{Success: true, Message: "Benefits retrieved", Data: dto.BenefitsResponse{AccountID: id, Benefits: benefits}})
}
