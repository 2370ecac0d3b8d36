package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
)

// Items is the part of the catalog service image uploads touch.
type Items interface {
	GetByID(ctx context.Context, id string) (catalog.Item, error)
	AddImages(ctx context.Context, id string, urls []string) (catalog.Item, error)
}

type Handler struct {
	store Store
	items Items
	log   *slog.Logger
}

// NewHandler accepts a nil store; uploads then answer 503.
func NewHandler(store Store, items Items, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, items: items, log: log}
}

// RegisterAdminRoutes expects r to already be guarded by the admin middleware.
func (h *Handler) RegisterAdminRoutes(r fiber.Router) {
	r.Post("/items/:id/images", h.uploadImages)
}

func (h *Handler) uploadImages(c *fiber.Ctx) error {
	if h.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": ErrDisabled.Error()})
	}
	ctx := c.UserContext()
	id := c.Params("id")
	it, err := h.items.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "item not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "failed to validate item"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid form data"})
	}
	files := form.File["images"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "no files uploaded"})
	}
	if len(it.Images)+len(files) > catalog.MaxImages {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": fmt.Sprintf("an item may have at most %d images", catalog.MaxImages),
		})
	}

	urls := make([]string, 0, len(files))
	failed := make([]string, 0)
	for _, fh := range files {
		contentType := fh.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			failed = append(failed, fh.Filename)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			h.log.WarnContext(ctx, "open upload", slog.String("file", fh.Filename), slog.Any("error", err))
			failed = append(failed, fh.Filename)
			continue
		}
		key := fmt.Sprintf("items/%s/%s%s", id, uuid.NewString(), strings.ToLower(filepath.Ext(fh.Filename)))
		url, err := h.store.Put(ctx, key, contentType, f)
		f.Close()
		if err != nil {
			h.log.WarnContext(ctx, "upload image", slog.String("file", fh.Filename), slog.Any("error", err))
			failed = append(failed, fh.Filename)
			continue
		}
		urls = append(urls, url)
	}

	resp := fiber.Map{"message": "files processed", "urls": urls}
	if len(failed) > 0 {
		resp["failed"] = failed
	}
	if len(urls) == 0 {
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}
	updated, err := h.items.AddImages(ctx, id, urls)
	if err != nil {
		h.log.ErrorContext(ctx, "images uploaded but not attached", slog.String("item_id", id), slog.Any("urls", urls), slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "images uploaded but could not be saved", "urls": urls})
	}
	resp["item"] = updated
	return c.JSON(resp)
}
