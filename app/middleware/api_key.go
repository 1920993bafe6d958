// Package middleware contains the admin API's fiber middleware
package middleware

import (
	"crypto/subtle"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/config"
	"github.com/gofiber/fiber/v3"
)

// APIKey rejects requests that do not carry one of the configured keys.
// Paths listed in skip are always let through.
func APIKey(cfg config.SecurityConfig, skip ...string) fiber.Handler {
	header := cfg.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c fiber.Ctx) error {
		if !cfg.RequireAPIKey || skipped[c.Path()] {
			return c.Next()
		}

		apiKey := c.Get(header)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "API key is required",
				Error:   dto.ErrorDetail{Code: "MISSING_API_KEY"},
			})
		}
		for _, valid := range cfg.AllowedAPIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(valid)) == 1 {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid API key",
			Error:   dto.ErrorDetail{Code: "INVALID_API_KEY"},
		})
	}
}
