package handlers

import (
	"github.com/amirphl/Susanoo/app/dto"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkUnitHandlerInterface exposes the work unit ledger
type WorkUnitHandlerInterface interface {
	GetWorkUnit(c fiber.Ctx) error
}

type WorkUnitHandler struct {
	submitter WorkUnitSubmitter
	logger    *zap.Logger
}

func NewWorkUnitHandler(submitter WorkUnitSubmitter, logger *zap.Logger) WorkUnitHandlerInterface {
	return &WorkUnitHandler{submitter: submitter, logger: logger}
}

// GetWorkUnit returns the state of a dispatched unit
// @Summary Get work unit
// @Tags Admin Work Units
// @Produce json
// @Param uuid path string true "Work unit UUID"
// @Success 200 {object} dto.APIResponse{data=dto.WorkUnitResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/work-units/{uuid} [get]
func (h *WorkUnitHandler) GetWorkUnit(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid work unit uuid", "INVALID_REQUEST", nil)
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/work-units/:uuid")
	defer cancel()
	unit, err := h.submitter.WorkUnit(ctx, id.String())
	if err != nil {
		return flowErrorResponse(c, h.logger, err)
	}
	return c.JSON(dto.APIResponse{Success: true, Message: "Work unit retrieved", Data: dto.NewWorkUnitResponse(unit)})
}
