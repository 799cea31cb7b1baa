package dto

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the issued token and display info of the principal.
type LoginResponse struct {
	Token       string      `json:"token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	UserID      string      `json:"user_id"`
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
}

// CreateUserRequest payload. Role defaults to USER; any value outside the
// enumeration fails decoding.
type CreateUserRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// UpdateUserRequest payload. Password is optional.
type UpdateUserRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password *string     `json:"password"`
	Role     domain.Role `json:"role"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
