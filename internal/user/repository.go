package user

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
)

type Repository interface {
	GetByID(id int) (User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(email string) (User, error)
	Create(user User) (User, error)
	Update(id int, user User) (User, error)
}

// InMemoryRepository keeps accounts in maps keyed by id and by lowercased
// email.
type InMemoryRepository struct {
	mu      sync.RWMutex
	byID    map[int]User
	byEmail map[string]int
	lastID  int
}

func NewInMemoryRepository(seed []User) *InMemoryRepository {
	r := &InMemoryRepository{
		byID:    make(map[int]User, len(seed)),
		byEmail: make(map[string]int, len(seed)),
	}
	for _, u := range seed {
		r.byID[u.ID] = u
		r.byEmail[emailKey(u.Email)] = u.ID
		r.lastID = max(r.lastID, u.ID)
	}
	return r
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *InMemoryRepository) GetByID(id int) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *InMemoryRepository) GetByEmail(email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *InMemoryRepository) Create(u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(u.Email)
	if _, taken := r.byEmail[key]; taken {
		return User{}, ErrEmailExists
	}
	if u.ID == 0 {
		r.lastID++
		u.ID = r.lastID
	} else {
		r.lastID = max(r.lastID, u.ID)
	}
	r.byID[u.ID] = u
	r.byEmail[key] = u.ID
	return u, nil
}

// Update replaces the profile fields and, when set, the password hash.
// Email and CreatedAt are kept.
func (r *InMemoryRepository) Update(id int, change User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.FullName = change.FullName
	u.Phone = change.Phone
	if change.Password != "" {
		u.Password = change.Password
	}
	u.UpdatedAt = change.UpdatedAt
	r.byID[id] = u
	return u, nil
}
