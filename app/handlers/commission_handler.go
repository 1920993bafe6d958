package handlers

import (
	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/tasks"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// CommissionHandlerInterface defines admin endpoints for commissions, withdrawals and settlement
type CommissionHandlerInterface interface {
	ProcessCommissions(c fiber.Ctx) error
	ProcessWithdrawal(c fiber.Ctx) error
	SettlePending(c fiber.Ctx) error
}

// CommissionHandler submits commission work units
type CommissionHandler struct {
	submitter        WorkUnitSubmitter
	settleBatchSize  int
	settleMaxAgeDays int
	validator        *validator.Validate
	logger           *zap.Logger
}

func NewCommissionHandler(submitter WorkUnitSubmitter, settleBatchSize, settleMaxAgeDays int, logger *zap.Logger) CommissionHandlerInterface {
	return &CommissionHandler{
		submitter:        submitter,
		settleBatchSize:  settleBatchSize,
		settleMaxAgeDays: settleMaxAgeDays,
		validator:        validator.New(),
		logger:           logger,
	}
}

// ProcessCommissions queues commission processing for a new investment
// @Summary Process investment commissions
// @Tags Admin Commissions
// @Produce json
// @Param id path int true "Investment ID"
// @Success 202 {object} dto.APIResponse{data=dto.WorkUnitResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/investments/{id}/commissions [post]
func (h *CommissionHandler) ProcessCommissions(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid investment id", "INVALID_REQUEST", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/investments/:id/commissions")
	defer cancel()
	unit, err := h.submitter.Submit(ctx, tasks.ProcessInvestmentCommissions{InvestmentID: id})
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return accepted(c, unit)
}

// ProcessWithdrawal queues the clawback of commissions paid on a withdrawn investment
// @Summary Process early withdrawal
// @Tags Admin Commissions
// @Accept json
// @Produce json
// @Param id path int true "Investment ID"
// @Param request body dto.WithdrawalRequest true "Withdrawal"
// @Success 202 {object} dto.APIResponse{data=dto.WorkUnitResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/investments/{id}/withdrawals [post]
func (h *CommissionHandler) ProcessWithdrawal(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid investment id", "INVALID_REQUEST", nil)
	}
	var req dto.WithdrawalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/investments/:id/withdrawals")
	defer cancel()
	unit, err := h.submitter.Submit(ctx, tasks.ProcessWithdrawalClawback{
		InvestmentID:        id,
		WithdrawalReference: req.WithdrawalReference,
		WithdrawnAt:         req.WithdrawnAt.UTC(),
	})
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return accepted(c, unit)
}

// SettlePending queues one settlement batch
// @Summary Settle pending commissions
// @Tags Admin Commissions
// @Accept json
// @Produce json
// @Param request body dto.SettleCommissionsRequest false "Batch bounds"
// @Success 202 {object} dto.APIResponse{data=dto.WorkUnitResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/commissions/settle [post]
func (h *CommissionHandler) SettlePending(c fiber.Ctx) error {
	var req dto.SettleCommissionsRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	task := tasks.SettlePendingCommissions{BatchSize: h.settleBatchSize, MaxAgeDays: h.settleMaxAgeDays}
	if req.BatchSize > 0 {
		task.BatchSize = req.BatchSize
	}
	if req.MaxAgeDays != nil {
		task.MaxAgeDays = *req.MaxAgeDays
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/commissions/settle")
	defer cancel()
	unit, err := h.submitter.Submit(ctx, task)
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return accepted(c, unit)
}
