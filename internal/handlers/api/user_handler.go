package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/SentimentalK/Avalon-Tunnel/internal/registry"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	registry *registry.Registry
	domain   string
}

func NewUserHandler(reg *registry.Registry, domain string) *UserHandler {
	return &UserHandler{
		registry: reg,
		domain:   domain,
	}
}

func conflictError(err error) bool {
	return errors.Is(err, registry.ErrEmailTaken) ||
		errors.Is(err, registry.ErrUUIDTaken) ||
		errors.Is(err, registry.ErrSecretPathTaken)
}

func (h *UserHandler) PostUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("malformed request body", err.Error()))
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("email is required", ""))
	}

	user, err := h.registry.Create(c.Context(), registry.CreateUserOptions{
		Email: req.Email,
		Notes: req.Notes,
		Level: req.Level,
	})
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrInvalidEmail):
			return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("invalid email address", ""))
		case conflictError(err):
			return c.Status(fiber.StatusConflict).JSON(NewErrorResponse("user already exists", err.Error()))
		}
		slog.Error("Failed to create user", "email", req.Email, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to create user", err.Error()))
	}

	return c.Status(fiber.StatusCreated).JSON(CreateUserResponse{
		Success: true,
		Message: fmt.Sprintf("user %s created", user.Email),
		User:    newUserResponse(user, h.domain),
	})
}

func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	enabledOnly := c.QueryBool("enabled_only", false)
	users, err := h.registry.List(c.Context(), enabledOnly)
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to list users", err.Error()))
	}

	resp := UserListResponse{
		Success: true,
		Count:   len(users),
		Users:   make([]UserResponse, 0, len(users)),
	}
	for _, user := range users {
		resp.Users = append(resp.Users, newUserResponse(user, h.domain))
	}
	return c.JSON(resp)
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.registry.GetByUUID(c.Context(), c.Params("uuid"))
	if errors.Is(err, registry.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("user not found", ""))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to get user", err.Error()))
	}
	return c.JSON(newUserResponse(user, h.domain))
}

func (h *UserHandler) PutUser(c *fiber.Ctx) error {
	userUUID := c.Params("uuid")
	if _, err := h.registry.GetByUUID(c.Context(), userUUID); errors.Is(err, registry.ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("user not found", ""))
	} else if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to get user", err.Error()))
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("malformed request body", err.Error()))
	}

	updated, err := h.registry.Update(c.Context(), userUUID, registry.UpdateUserOptions{
		Email:   req.Email,
		Enabled: req.Enabled,
		Level:   req.Level,
		Notes:   req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrInvalidEmail):
			return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("invalid email address", ""))
		case conflictError(err):
			return c.Status(fiber.StatusConflict).JSON(NewErrorResponse("email already registered", err.Error()))
		}
		slog.Error("Failed to update user", "uuid", userUUID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to update user", err.Error()))
	}
	if !updated {
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorResponse("no updatable fields supplied", ""))
	}

	user, err := h.registry.GetByUUID(c.Context(), userUUID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to get user", err.Error()))
	}
	return c.JSON(newUserResponse(user, h.domain))
}

func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	deleted, err := h.registry.Delete(c.Context(), c.Params("uuid"))
	if err != nil {
		slog.Error("Failed to delete user", "uuid", c.Params("uuid"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse("failed to delete user", err.Error()))
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse("user not found", ""))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
