package user

import "time"

// User is a customer account. Password holds the bcrypt hash and is never
// sent back to clients.
type User struct {
	ID        int       `json:"userId"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileUpdate carries the fields a customer may change; nil leaves the
// stored value alone.
type ProfileUpdate struct {
	FullName *string `json:"fullName,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

func sanitizeUser(user User) User {
	user.Password = ""
	return user
}
