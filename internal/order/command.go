package order

import "context"

// PreparedToggle changes an order's prepared flag and remembers the value it
// replaced. If the write fails the returned order carries the previous flag,
// so callers can put their view back the way it was.
type PreparedToggle struct {
	OrderID  string
	Prepared bool

	previous bool
	applied  bool
}

func (t *PreparedToggle) Execute(ctx context.Context, s *Service) (Order, error) {
	current, err := s.Get(ctx, t.OrderID)
	if err != nil {
		return Order{}, err
	}
	t.previous = current.Prepared
	updated, err := s.SetPrepared(ctx, t.OrderID, t.Prepared)
	if err != nil {
		current.Prepared = t.previous
		return current, err
	}
	t.applied = true
	return updated, nil
}

// Undo restores the flag seen before Execute. It is a no-op if Execute did
// not apply.
func (t *PreparedToggle) Undo(ctx context.Context, s *Service) (Order, error) {
	if !t.applied {
		return s.Get(ctx, t.OrderID)
	}
	o, err := s.SetPrepared(ctx, t.OrderID, t.previous)
	if err != nil {
		return Order{}, err
	}
	t.applied = false
	return o, nil
}

// Previous is the flag value before Execute ran.
func (t *PreparedToggle) Previous() bool {
	return t.previous
}
