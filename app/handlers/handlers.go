// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/app/tasks"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

// WorkUnitSubmitter queues tasks and reads back their work units; *tasks.Dispatcher satisfies it
type WorkUnitSubmitter interface {
	Submit(ctx context.Context, task tasks.Task) (*models.WorkUnit, error)
	WorkUnit(ctx context.Context, uuid string) (*models.WorkUnit, error)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "datetime":
		return err.Field() + " must use the format " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func validationDetails(err error) any {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err.Error()
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

func errorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

// flowErrorResponse maps engine errors onto HTTP statuses
func flowErrorResponse(c fiber.Ctx, logger *zap.Logger, err error) error {
	code := "INTERNAL_ERROR"
	var bizErr *businessflow.BusinessError
	if errors.As(err, &bizErr) {
		code = bizErr.Code
	}

	switch {
	case tasks.IsInvalidTask(err):
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	case businessflow.IsValidationError(err):
		return errorResponse(c, fiber.StatusBadRequest, err.Error(), code, nil)
	case businessflow.IsNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, err.Error(), code, nil)
	case businessflow.IsDistributionAlreadyExists(err):
		return errorResponse(c, fiber.StatusConflict, err.Error(), code, nil)
	default:
		logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Internal server error", code, nil)
	}
}

func accepted(c fiber.Ctx, unit *models.WorkUnit) error {
	return c.Status(fiber.StatusAccepted).JSON(dto.APIResponse{
		Success: true,
		Message: "Work unit accepted",
		Data:    dto.NewWorkUnitResponse(unit),
	})
}

func requestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	return ctx, cancel
}

func uintParam(c fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, value, time.UTC)
}
