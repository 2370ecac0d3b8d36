package checkout

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/perfume-shop-backend/internal/cart"
	"github.com/wichananm65/perfume-shop-backend/internal/payment"
)

type Handler struct {
	checkout *Orchestrator
	ledger   Ledger
}

func NewHandler(o *Orchestrator, ledger Ledger) *Handler {
	return &Handler{checkout: o, ledger: ledger}
}

func (h *Handler) RegisterPublicRoutes(r fiber.Router) {
	r.Get("/api/v1/checkout/quote", h.getQuote)
	r.Post("/api/v1/checkout", h.begin)
	r.Get("/api/v1/checkout/:session", h.getSession)
	r.Post("/api/v1/checkout/:session/confirm", h.confirm)
	r.Post("/api/v1/checkout/:session/dismiss", h.dismiss)
	r.Post("/api/v1/checkout/:session/fail", h.fail)
}

// RegisterAdminRoutes expects r to already be guarded by the admin middleware.
func (h *Handler) RegisterAdminRoutes(r fiber.Router) {
	r.Get("/reconciliation", h.listHazards)
}

type beginRequest struct {
	CustomerDetails
	PaymentMethod payment.Method `json:"paymentMethod"`
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) getQuote(c *fiber.Ctx) error {
	q, err := h.checkout.Quote(c.UserContext(), c.Get(cart.HeaderCartID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(q)
}

func (h *Handler) begin(c *fiber.Ctx) error {
	payload := new(beginRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	sess, err := h.checkout.Begin(c.UserContext(), c.Get(cart.HeaderCartID), payload.CustomerDetails, payload.PaymentMethod)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (h *Handler) getSession(c *fiber.Ctx) error {
	sess, err := h.checkout.Lookup(c.Params("session"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sess)
}

func (h *Handler) confirm(c *fiber.Ctx) error {
	conf := new(payment.Confirmation)
	if err := c.BodyParser(conf); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	res, err := h.checkout.Complete(c.UserContext(), c.Params("session"), *conf)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) dismiss(c *fiber.Ctx) error {
	sess, err := h.checkout.Dismiss(c.UserContext(), c.Params("session"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sess)
}

func (h *Handler) fail(c *fiber.Ctx) error {
	payload := new(failRequest)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
	}
	sess, err := h.checkout.Fail(c.UserContext(), c.Params("session"), payload.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sess)
}

func (h *Handler) listHazards(c *fiber.Ctx) error {
	hazards, err := h.ledger.List(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "could not load reconciliation records"})
	}
	return c.JSON(hazards)
}

var kindStatus = map[Kind]int{
	KindValidation:                      fiber.StatusBadRequest,
	KindInsufficientStock:               fiber.StatusConflict,
	KindPayment:                         fiber.StatusPaymentRequired,
	KindPaymentCapturedOrderNotRecorded: fiber.StatusBadGateway,
	KindPaymentCapturedItemsNotRecorded: fiber.StatusBadGateway,
	KindConflict:                        fiber.StatusConflict,
	KindNotFound:                        fiber.StatusNotFound,
	KindUnavailable:                     fiber.StatusServiceUnavailable,
}

func writeError(c *fiber.Ctx, err error) error {
	var ce *Error
	if !errors.As(err, &ce) {
		slog.ErrorContext(c.UserContext(), "checkout request failed", slog.String("path", c.Path()), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Something went wrong, please try again"})
	}
	body := fiber.Map{"message": ce.Message, "code": ce.Kind}
	if len(ce.Fields) > 0 {
		body["errors"] = ce.Fields
	}
	if len(ce.Shortages) > 0 {
		body["items"] = ce.Shortages
	}
	if ce.OrderID != "" {
		body["orderId"] = ce.OrderID
	}
	if ce.TransactionRef != "" {
		body["transactionRef"] = ce.TransactionRef
	}
	return c.Status(kindStatus[ce.Kind]).JSON(body)
}
