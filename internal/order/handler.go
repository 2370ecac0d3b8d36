package order

import (
	"errors"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/perfume-shop-backend/internal/user"
)

// Customers resolves the signed-in customer behind a token.
type Customers interface {
	GetByID(id int) (user.User, error)
}

// Handler serves the admin order screens and the customer's own history.
type Handler struct {
	service   *Service
	customers Customers

	mu      sync.Mutex
	toggles map[string]*PreparedToggle
}

func NewHandler(s *Service, customers Customers) *Handler {
	return &Handler{service: s, customers: customers, toggles: make(map[string]*PreparedToggle)}
}

// RegisterProtectedRoutes expects r to sit behind the customer JWT middleware.
func (h *Handler) RegisterProtectedRoutes(r fiber.Router) {
	r.Get("/api/v1/orders", h.getMyOrders)
}

// RegisterAdminRoutes expects r to already be guarded by the admin middleware.
func (h *Handler) RegisterAdminRoutes(r fiber.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/:orderId", h.getOrder)
	r.Patch("/orders/:orderId/status", h.updateStatus)
	r.Patch("/orders/:orderId/prepared", h.setPrepared)
	r.Post("/orders/:orderId/prepared/undo", h.undoPrepared)
}

func pageParams(c *fiber.Ctx) ListFilter {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultPageSize)))
	return ListFilter{Page: page, Limit: limit, Sort: c.Query("sort", "desc")}
}

func (h *Handler) listOrders(c *fiber.Ctx) error {
	f := pageParams(c)
	if st := c.Query("status"); st != "" {
		if !Status(st).Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": ErrInvalidStatus.Error()})
		}
		f.Status = Status(st)
	}
	page, err := h.service.List(c.UserContext(), f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "unable to fetch orders"})
	}
	return c.JSON(page)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	o, err := h.service.Get(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(o)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	payload := new(statusRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	o, err := h.service.UpdateStatus(c.UserContext(), c.Params("orderId"), payload.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(o)
}

type preparedRequest struct {
	Prepared *bool `json:"prepared"`
}

func (h *Handler) setPrepared(c *fiber.Ctx) error {
	payload := new(preparedRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Prepared == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "prepared is required"})
	}
	orderID := c.Params("orderId")
	cmd := &PreparedToggle{OrderID: orderID, Prepared: *payload.Prepared}
	o, err := cmd.Execute(c.UserContext(), h.service)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message":  "could not update prepared flag",
			"prepared": o.Prepared,
		})
	}
	h.mu.Lock()
	h.toggles[orderID] = cmd
	h.mu.Unlock()
	return c.JSON(o)
}

func (h *Handler) undoPrepared(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	h.mu.Lock()
	cmd, ok := h.toggles[orderID]
	delete(h.toggles, orderID)
	h.mu.Unlock()
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "nothing to undo"})
	}
	o, err := cmd.Undo(c.UserContext(), h.service)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(o)
}

// getMyOrders returns the orders placed with the signed-in customer's email.
func (h *Handler) getMyOrders(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	usr, err := h.customers.GetByID(userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "user not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	if usr.Email == "" {
		return c.JSON(Page{Orders: []Order{}})
	}
	f := pageParams(c)
	f.Email = usr.Email
	page, err := h.service.List(c.UserContext(), f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "unable to fetch orders"})
	}
	return c.JSON(page)
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
	case errors.Is(err, ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
