package category

import "context"

// Service provides business logic for categories.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// List returns up to `limit` categories.
func (s *Service) List(ctx context.Context, limit int) []Category {
	items, err := s.repo.List(ctx, limit)
	if err != nil {
		return []Category{}
	}
	return items
}

// Known reports whether name is one of the listed categories. An empty
// category table accepts everything so a fresh install is usable.
func (s *Service) Known(ctx context.Context, name string) bool {
	items := s.List(ctx, 1000)
	if len(items) == 0 {
		return true
	}
	for _, c := range items {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Save adds a category or refreshes its image.
func (s *Service) Save(ctx context.Context, name string, image *string) (Category, error) {
	return s.repo.Save(ctx, name, image)
}

// SeedDefaults fills an empty category table with Defaults.
func (s *Service) SeedDefaults(ctx context.Context) error {
	existing, err := s.repo.List(ctx, 1)
	if err != nil || len(existing) > 0 {
		return err
	}
	for _, name := range Defaults {
		if _, err := s.repo.Save(ctx, name, nil); err != nil {
			return err
		}
	}
	return nil
}
