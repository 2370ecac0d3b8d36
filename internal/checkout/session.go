package checkout

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/perfume-shop-backend/internal/cart"
	"github.com/wichananm65/perfume-shop-backend/internal/order"
	"github.com/wichananm65/perfume-shop-backend/internal/payment"
)

type State string

const (
	StateAwaitingPayment State = "awaiting_payment"
	StateCompleting      State = "completing"
	StateCompleted       State = "completed"
	StateDismissed       State = "dismissed"
	StateFailed          State = "failed"
)

// Session is one checkout attempt, from payment initiation until the order
// is recorded or the customer walks away.
type Session struct {
	ID            string          `json:"sessionId"`
	CartID        string          `json:"cartId"`
	OrderID       string          `json:"orderId"`
	Details       CustomerDetails `json:"details"`
	Method        payment.Method  `json:"paymentMethod"`
	Lines         []cart.Line     `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Shipping      decimal.Decimal `json:"shipping"`
	Total         decimal.Decimal `json:"total"`
	Intent        payment.Intent  `json:"payment"`
	State         State           `json:"state"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	// TransactionRef is set once the order header is stored; later
	// attempts must confirm the same payment.
	TransactionRef string `json:"transactionRef,omitempty"`

	result *Result
}

// Result is returned once an order is recorded.
type Result struct {
	Order         order.Order `json:"order"`
	CustomerPhone string      `json:"customerPhone"`
	Warnings      []Warning   `json:"warnings"`
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

func (s *sessionStore) put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *sessionStore) get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// claim moves a session into completing. A completed session is handed
// back with its stored result so a replayed confirmation is answered from
// memory.
func (s *sessionStore) claim(id string, now time.Time) (Session, *Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, nil, &Error{Kind: KindNotFound, Message: "Checkout session not found"}
	}
	switch sess.State {
	case StateCompleted:
		return *sess, sess.result, nil
	case StateCompleting:
		return Session{}, nil, &Error{Kind: KindConflict, Message: "Payment is already being processed"}
	}
	sess.State = StateCompleting
	sess.UpdatedAt = now
	return *sess, nil, nil
}

// transition applies a state change unless the session is completing or
// completed.
func (s *sessionStore) transition(id string, to State, reason string, now time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, &Error{Kind: KindNotFound, Message: "Checkout session not found"}
	}
	if sess.State == StateCompleting || sess.State == StateCompleted {
		return Session{}, &Error{Kind: KindConflict, Message: fmt.Sprintf("Checkout is already %s", sess.State)}
	}
	sess.State = to
	sess.FailureReason = reason
	sess.UpdatedAt = now
	return *sess, nil
}

// recorded pins the payment the session's order header was stored with.
func (s *sessionStore) recorded(id, ref string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.TransactionRef = ref
		sess.UpdatedAt = now
	}
}

// release hands a completing session back so the customer may retry.
func (s *sessionStore) release(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok && sess.State == StateCompleting {
		sess.State = StateAwaitingPayment
		sess.UpdatedAt = now
	}
}

func (s *sessionStore) complete(id string, res *Result, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.State = StateCompleted
		sess.result = res
		sess.UpdatedAt = now
	}
}

// prune drops sessions untouched since before, except ones mid-completion.
func (s *sessionStore) prune(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.State != StateCompleting && sess.UpdatedAt.Before(before) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// orderIDs issues order ids whose clock component never repeats within the
// process.
type orderIDs struct {
	mu   sync.Mutex
	last int64
}

func (g *orderIDs) next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := now.UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return order.NewOrderID(time.UnixMilli(ms))
}
