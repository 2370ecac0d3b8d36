package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) GetByID(id int) (User, error) {
	return s.repo.GetByID(id)
}

// Register stores a new account with a bcrypt hash of user.Password.
func (s *Service) Register(user User) (User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, err := s.repo.GetByEmail(user.Email); err == nil {
		return User{}, ErrEmailExists
	} else if err != ErrNotFound {
		return User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user.Password = string(hashed)
	user.FullName = strings.TrimSpace(user.FullName)
	user.Phone = strings.TrimSpace(user.Phone)
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	return s.repo.Create(user)
}

func (s *Service) Authenticate(email, password string) (User, error) {
	user, err := s.repo.GetByEmail(strings.TrimSpace(email))
	if err != nil {
		return User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) UpdateProfile(id int, p ProfileUpdate) (User, error) {
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return User{}, err
	}
	if p.FullName != nil {
		existing.FullName = strings.TrimSpace(*p.FullName)
	}
	if p.Phone != nil {
		existing.Phone = strings.TrimSpace(*p.Phone)
	}
	existing.Password = ""
	existing.UpdatedAt = s.now()
	return s.repo.Update(id, existing)
}
