package cart

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
)

// HeaderCartID carries the session cart id on every cart request.
const HeaderCartID = "X-Cart-ID"

// Handler delegates cart operations to the cart service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Post("/api/v1/cart", h.createCart)
	r.Get("/api/v1/cart", h.getCart)
	r.Post("/api/v1/cart/items", h.addItem)
	r.Patch("/api/v1/cart/items/:itemId", h.updateItem)
	r.Delete("/api/v1/cart/items/:itemId", h.removeItem)
}

type view struct {
	ID       string          `json:"id"`
	Lines    []Line          `json:"lines"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func toView(c Cart) view {
	return view{ID: c.ID, Lines: c.Lines, Count: c.Count(), Subtotal: c.Total()}
}

type addRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity,omitempty"`
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) createCart(c *fiber.Ctx) error {
	created := h.service.Create()
	c.Set(HeaderCartID, created.ID)
	return c.Status(fiber.StatusCreated).JSON(toView(created))
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	crt, err := h.service.Get(c.Get(HeaderCartID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toView(crt))
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	payload := new(addRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ItemID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "itemId is required"})
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}
	crt, err := h.service.Add(c.UserContext(), c.Get(HeaderCartID), payload.ItemID, payload.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toView(crt))
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	payload := new(updateRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	crt, err := h.service.UpdateQuantity(c.Get(HeaderCartID), c.Params("itemId"), payload.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toView(crt))
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	crt, err := h.service.Remove(c.Get(HeaderCartID), c.Params("itemId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toView(crt))
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "cart not found"})
	case errors.Is(err, catalog.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "item not found"})
	case errors.Is(err, ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
