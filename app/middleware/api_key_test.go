package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amirphl/Susanoo/app/middleware"
	"github.com/amirphl/Susanoo/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKey(t *testing.T) {
	cfg := config.SecurityConfig{RequireAPIKey: true, AllowedAPIKeys: []string{"k1", "k2"}}
	app := fiber.New()
	app.Use(middleware.APIKey(cfg, "/health"))
	ok := func(c fiber.Ctx) error { return c.SendString("ok") }
	app.Get("/health", ok)
	app.Get("/admin", ok)

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"skipped path", "/health", "", fiber.StatusOK},
		{"missing key", "/admin", "", fiber.StatusUnauthorized},
		{"wrong key", "/admin", "k3", fiber.StatusUnauthorized},
		{"valid key", "/admin", "k2", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAPIKey_Disabled(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.APIKey(config.SecurityConfig{APIKeyHeader: "X-Admin-Key"}))
	app.Get("/admin", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
