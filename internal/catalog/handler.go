package catalog

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Get("/api/v1/items", h.getItems)
	r.Get("/api/v1/items/:id", h.getItem)
	r.Get("/api/v1/brands", h.getBrands)
}

// RegisterAdminRoutes expects r to already be guarded by the admin middleware.
func (h *Handler) RegisterAdminRoutes(r fiber.Router) {
	r.Get("/items", h.getItems)
	r.Post("/items", h.createItem)
	r.Put("/items/:id", h.updateItem)
	r.Delete("/items/:id", h.deleteItem)
}

func (h *Handler) getItems(c *fiber.Ctx) error {
	items, err := h.service.List(c.UserContext(), Filter{
		Category: c.Query("category"),
		Brand:    c.Query("brand"),
		Query:    c.Query("q"),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load items"})
	}
	return c.JSON(items)
}

func (h *Handler) getItem(c *fiber.Ctx) error {
	it, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(it)
}

func (h *Handler) getBrands(c *fiber.Ctx) error {
	brands, err := h.service.Brands(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load brands"})
	}
	return c.JSON(brands)
}

func (h *Handler) createItem(c *fiber.Ctx) error {
	it := new(Item)
	if err := c.BodyParser(it); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	created, err := h.service.Create(c.UserContext(), *it)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	it := new(Item)
	if err := c.BodyParser(it); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	updated, err := h.service.Update(c.UserContext(), c.Params("id"), *it)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(updated)
}

func (h *Handler) deleteItem(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeError(c *fiber.Ctx, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ve.Fields})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "item not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
