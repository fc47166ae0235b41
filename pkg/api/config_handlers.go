package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/leapdrone/controller/pkg/log"
	"github.com/leapdrone/controller/services"
)

// RuntimeConfigStore is the part of the runtime config service the API uses.
type RuntimeConfigStore interface {
	Current() services.RuntimeOptions
	CurrentYAML() ([]byte, error)
	ApplyJSON(data []byte) (services.RuntimeOptions, error)
	ApplyYAML(data []byte) (services.RuntimeOptions, error)
}

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	store  RuntimeConfigStore
	logger customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(store RuntimeConfigStore, logger customlog.Logger) *ConfigHandler {
	if store == nil {
		panic("RuntimeConfigStore cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{store: store, logger: logger}
}

// RegisterConfigRoutes registers the runtime configuration endpoints.
func RegisterConfigRoutes(app *fiber.App, store RuntimeConfigStore, logger customlog.Logger) {
	h := NewConfigHandler(store, logger)

	apiGroup := app.Group("/api/v1/config")
	apiGroup.Get("/runtime", h.handleGetRuntimeConfig)
	apiGroup.Put("/runtime", h.handleUpdateRuntimeConfig)

	logger.Infof("Registered runtime configuration API endpoints under /api/v1/config")
}

// handleGetRuntimeConfig returns YAML unless the client asks for JSON.
func (h *ConfigHandler) handleGetRuntimeConfig(c *fiber.Ctx) error {
	if strings.Contains(c.Get(fiber.HeaderAccept), "json") {
		return c.JSON(h.store.Current())
	}

	yamlData, err := h.store.CurrentYAML()
	if err != nil {
		h.logger.Errorf("Failed to render runtime options: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}
	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

// handleUpdateRuntimeConfig merges a JSON or YAML partial into the live options.
func (h *ConfigHandler) handleUpdateRuntimeConfig(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "Request body cannot be empty."})
	}

	var (
		updated services.RuntimeOptions
		err     error
	)
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		updated, err = h.store.ApplyJSON(body)
	} else {
		updated, err = h.store.ApplyYAML(body)
	}
	if err != nil {
		if errors.Is(err, services.ErrInvalidConfig) {
			h.logger.Warnf("Rejected runtime configuration update: %v", err)
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Error: fmt.Sprintf("Configuration update failed: %v", err),
			})
		}
		h.logger.Errorf("Failed to update runtime configuration: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Error: fmt.Sprintf("Internal server error during configuration update: %v", err),
		})
	}

	return c.Status(http.StatusOK).JSON(MessageResponse{
		Message: "Runtime configuration updated.",
		Config:  updated,
	})
}
