package api

import (
	"errors"
	"log/slog"

	"github.com/SentimentalK/Avalon-Tunnel/internal/devicelog"
	"github.com/SentimentalK/Avalon-Tunnel/internal/registry"
	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/gofiber/fiber/v2"
)

type DeviceHandler struct {
	registry *registry.Registry
	devices  *devicelog.Service
}

func NewDeviceHandler(reg *registry.Registry, devices *devicelog.Service) *DeviceHandler {
	return &DeviceHandler{
		registry: reg,
		devices:  devices,
	}
}

func (h *DeviceHandler) GetDevices(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", params.DeviceLogDefaultLimit)
	entries, err := h.devices.ListAll(c.Context(), limit)
	if err != nil {
		slog.Error("Failed to list device access", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to list devices", err.Error()))
	}
	return c.JSON(DeviceListResponse{
		Success: true,
		Count:   len(entries),
		Devices: entries,
	})
}

func (h *DeviceHandler) GetUserDevices(c *fiber.Ctx) error {
	user, err := h.registry.GetByUUID(c.Context(), c.Params("uuid"))
	if errors.Is(err, registry.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("user not found", ""))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to get user", err.Error()))
	}

	entries, err := h.devices.ListByUser(c.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to list user devices", "uuid", user.UUID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to list devices", err.Error()))
	}
	return c.JSON(DeviceListResponse{
		Success: true,
		Count:   len(entries),
		Devices: entries,
	})
}

// PostRecordDevice lets the out-of-process access pipeline report sightings.
// Recording is fail-open telemetry, so the response is always a success once
// the user resolves.
func (h *DeviceHandler) PostRecordDevice(c *fiber.Ctx) error {
	var req RecordDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("malformed request body", err.Error()))
	}
	if req.UserUUID == "" || req.SourceIP == "" {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("user_uuid and source_ip are required", ""))
	}

	user, err := h.registry.GetByUUID(c.Context(), req.UserUUID)
	if errors.Is(err, registry.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("user not found", ""))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to get user", err.Error()))
	}

	h.devices.Record(c.Context(), user.ID, req.UserAgent, req.SourceIP, req.AccessedPath)
	return c.JSON(fiber.Map{"success": true})
}
