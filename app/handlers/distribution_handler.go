package handlers

import (
	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/tasks"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// DistributionHandlerInterface defines admin endpoints for profit pool runs
type DistributionHandlerInterface interface {
	DistributeAnnual(c fiber.Ctx) error
	DistributeQuarterlyBonus(c fiber.Ctx) error
	GetDistribution(c fiber.Ctx) error
	DownloadReport(c fiber.Ctx) error
}

// DistributionHandler submits distribution runs and serves their results
type DistributionHandler struct {
	submitter WorkUnitSubmitter
	flow      businessflow.ProfitDistributionFlow
	validator *validator.Validate
	logger    *zap.Logger
}

func NewDistributionHandler(submitter WorkUnitSubmitter, flow businessflow.ProfitDistributionFlow, logger *zap.Logger) DistributionHandlerInterface {
	return &DistributionHandler{
		submitter: submitter,
		flow:      flow,
		validator: validator.New(),
		logger:    logger,
	}
}

// DistributeAnnual queues the annual profit distribution
// @Summary Distribute annual profit
// @Tags Admin Distributions
// @Accept json
// @Produce json
// @Param request body dto.AnnualDistributionRequest true "Annual run"
// @Success 202 {object} dto.APIResponse{data=dto.WorkUnitResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/distributions/annual [post]
func (h *DistributionHandler) DistributeAnnual(c fiber.Ctx) error {
	var req dto.AnnualDistributionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}
	date, err := parseDate(req.DistributionDate)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid distribution_date", "VALIDATION_ERROR", err.Error())
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/distributions/annual")
	defer cancel()
	unit, err := h.submitter.Submit(ctx, tasks.DistributeAnnualProfit{
		TotalProfit:      req.TotalProfit,
		DistributionDate: date,
		Force:            req.Force,
		CreatedBy:        req.CreatedBy,
	})
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return accepted(c, unit)
}

// DistributeQuarterlyBonus queues the quarterly bonus distribution
// @Summary Distribute quarterly bonus
// @Tags Admin Distributions
// @Accept json
// @Produce json
// @Param request body dto.QuarterlyBonusRequest true "Quarterly run"
// @Success 202 {object} dto.APIResponse{data=dto.WorkUnitResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/distributions/quarterly [post]
func (h *DistributionHandler) DistributeQuarterlyBonus(c fiber.Ctx) error {
	var req dto.QuarterlyBonusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}
	date, err := parseDate(req.DistributionDate)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid distribution_date", "VALIDATION_ERROR", err.Error())
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/distributions/quarterly")
	defer cancel()
	unit, err := h.submitter.Submit(ctx, tasks.DistributeQuarterlyBonus{
		TotalProfit:         req.TotalProfit,
		BonusPoolPercentage: req.BonusPoolPercentage,
		DistributionDate:    date,
		Force:               req.Force,
		CreatedBy:           req.CreatedBy,
	})
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return accepted(c, unit)
}

// GetDistribution returns a distribution header with its allocations
// @Summary Get distribution
// @Tags Admin Distributions
// @Produce json
// @Param id path int true "Distribution ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/distributions/{id} [get]
func (h *DistributionHandler) GetDistribution(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid distribution id", "INVALID_REQUEST", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/distributions/:id")
	defer cancel()
	result, err := h.flow.GetDistribution(ctx, id)
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return c.JSON(dto.APIResponse{Success: true, Message: "Distribution retrieved", Data: result})
}

// DownloadReport returns the distribution as an xlsx workbook
// @Summary Download distribution report
// @Tags Admin Distributions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Distribution ID"
// @Success 200 {file} file "XLSX file"
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/distributions/{id}/report [get]
func (h *DistributionHandler) DownloadReport(c fiber.Ctx) error {
	id, ok := uintParam(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid distribution id", "INVALID_REQUEST", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/distributions/:id/report")
	defer cancel()
	filename, data, err := h.flow.ExportReport(ctx, id)
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
