package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ValidationError carries per-field messages for an invalid item payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid item: " + strings.Join(keys, ", ")
}

// CategoryChecker reports whether a category name is allowed.
type CategoryChecker interface {
	Known(ctx context.Context, name string) bool
}

type Service struct {
	repo       Repository
	validate   *validator.Validate
	categories CategoryChecker
	now        func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UseCategories makes Create and Update reject unknown categories.
func (s *Service) UseCategories(c CategoryChecker) {
	s.categories = c
}

func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) GetByID(ctx context.Context, id string) (Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByIDs(ctx context.Context, ids []string) ([]Item, error) {
	return s.repo.GetByIDs(ctx, ids)
}

func (s *Service) Create(ctx context.Context, it Item) (Item, error) {
	if err := s.check(ctx, it); err != nil {
		return Item{}, err
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := s.now()
	it.CreatedAt = now
	it.UpdatedAt = now
	if it.Images == nil {
		it.Images = []string{}
	}
	return s.repo.Create(ctx, it)
}

func (s *Service) Update(ctx context.Context, id string, it Item) (Item, error) {
	if err := s.check(ctx, it); err != nil {
		return Item{}, err
	}
	it.UpdatedAt = s.now()
	if it.Images == nil {
		it.Images = []string{}
	}
	return s.repo.Update(ctx, id, it)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AddImages appends uploaded image references to an item, refusing to go
// past MaxImages.
func (s *Service) AddImages(ctx context.Context, id string, urls []string) (Item, error) {
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if len(it.Images)+len(urls) > MaxImages {
		return Item{}, &ValidationError{Fields: map[string]string{"images": fmt.Sprintf("an item may have at most %d images", MaxImages)}}
	}
	it.Images = append(it.Images, urls...)
	it.UpdatedAt = s.now()
	return s.repo.Update(ctx, id, it)
}

// DecrementStock removes qty units of an item.
func (s *Service) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("decrement %s: quantity must be positive", id)
	}
	return s.repo.DecrementStock(ctx, id, qty)
}

// StockLevels reads the current stock of each id straight from the store.
// Ids that no longer exist are absent from the result.
func (s *Service) StockLevels(ctx context.Context, ids []string) (map[string]Item, error) {
	items, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Item, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// Brands returns the distinct brand labels in the catalog, sorted.
func (s *Service) Brands(ctx context.Context) ([]string, error) {
	items, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, it := range items {
		if it.Brand == "" {
			continue
		}
		if _, ok := seen[it.Brand]; ok {
			continue
		}
		seen[it.Brand] = struct{}{}
		out = append(out, it.Brand)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) check(ctx context.Context, it Item) error {
	fields := map[string]string{}
	if err := s.validate.Struct(it); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return err
		}
		for _, fe := range ves {
			fields[jsonName(fe.Field())] = fieldMessage(fe)
		}
	}
	if it.Price.IsNegative() {
		fields["price"] = "price must be >= 0"
	}
	if _, bad := fields["category"]; !bad && s.categories != nil && !s.categories.Known(ctx, it.Category) {
		fields["category"] = "invalid category"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func fieldMessage(fe validator.FieldError) string {
	name := jsonName(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gte":
		return name + " must be >= " + fe.Param()
	case "max":
		return name + " exceeds maximum of " + fe.Param()
	default:
		return name + " is invalid"
	}
}
