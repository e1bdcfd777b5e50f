package models

// User represents a row of the users table. The password hash never
// leaves the server.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Username     string `db:"username" json:"username"`
	Gender       string `db:"gender" json:"gender"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
}

// UserFields are the mutable profile columns written by insert and update.
type UserFields struct {
	Name     string `db:"name"`
	Username string `db:"username"`
	Gender   string `db:"gender"`
	Email    string `db:"email"`
}

// CreateUserRequest is the body of POST /<version>/users.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,max=50"`
	Gender   string `json:"gender" validate:"required,max=20"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// UpdateUserRequest is the body of PUT /<version>/users/{id}.
type UpdateUserRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,max=50"`
	Gender   string `json:"gender" validate:"required,max=20"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// LoginRequest defines the structure for a user login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse defines the structure for a successful login response.
type LoginResponse struct {
	Token string `json:"token"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
