package admin

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	auth   *Authenticator
	items  Items
	orders Orders
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewHandler(auth *Authenticator, items Items, orders Orders) *Handler {
	return &Handler{auth: auth, items: items, orders: orders}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Post("/api/v1/admin/sign-in", h.signIn)
}

// RegisterAdminRoutes expects r to already be guarded by RequireAdmin.
func (h *Handler) RegisterAdminRoutes(r fiber.Router) {
	r.Get("/stats", h.getStats)
}

func (h *Handler) signIn(c *fiber.Ctx) error {
	payload := new(signInRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	token, err := h.auth.SignIn(payload.Email, payload.Password)
	switch {
	case errors.Is(err, ErrDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid email or password"})
	}
	return c.JSON(fiber.Map{"message": "Login successful", "token": token})
}

func (h *Handler) getStats(c *fiber.Ctx) error {
	st, err := ComputeStats(c.UserContext(), h.items, h.orders)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "unable to compute stats"})
	}
	return c.JSON(st)
}
