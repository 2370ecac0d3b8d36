package search

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
)

// Catalog is the read side of the catalog the search routes need.
type Catalog interface {
	List(ctx context.Context, f catalog.Filter) ([]catalog.Item, error)
	GetByID(ctx context.Context, id string) (catalog.Item, error)
}

type Handler struct {
	catalog Catalog
}

func NewHandler(c Catalog) *Handler {
	return &Handler{catalog: c}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Get("/api/v1/search", h.search)
	r.Get("/api/v1/items/:id/related", h.related)
}

func queryLimit(c *fiber.Ctx, fallback int) int {
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func (h *Handler) search(c *fiber.Ctx) error {
	items, err := h.catalog.List(c.UserContext(), catalog.Filter{})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load items"})
	}
	return c.JSON(Search(c.Query("q"), items, queryLimit(c, DefaultLimit)))
}

func (h *Handler) related(c *fiber.Ctx) error {
	ctx := c.UserContext()
	current, err := h.catalog.GetByID(ctx, c.Params("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "item not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	items, err := h.catalog.List(ctx, catalog.Filter{Category: current.Category})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load items"})
	}
	return c.JSON(Related(current, items, queryLimit(c, DefaultRelatedLimit)))
}
