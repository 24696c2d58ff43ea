package api

import (
	"log/slog"

	"github.com/SentimentalK/Avalon-Tunnel/internal/synth"
	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/gofiber/fiber/v2"
)

type ConfigHandler struct {
	synthesizer *synth.Synthesizer
}

func NewConfigHandler(synthesizer *synth.Synthesizer) *ConfigHandler {
	return &ConfigHandler{synthesizer: synthesizer}
}

// PostReload re-synthesizes both config documents from the current registry
// snapshot. A failed downstream apply is reported inside the result body, not
// as an HTTP error: the registry state already changed and stays
// authoritative.
func (h *ConfigHandler) PostReload(c *fiber.Ctx) error {
	result, err := h.synthesizer.Synthesize(c.Context())
	if err != nil {
		slog.Error("Config synthesis failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("config synthesis failed", err.Error()))
	}
	return c.JSON(result)
}

func (h *ConfigHandler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Service: "avalon-tunnel",
		Version: params.Version,
	})
}
