package service

import (
	"context"
	"ctchen222/user-service/internal/api/models"
	"ctchen222/user-service/internal/api/repository"
	"ctchen222/user-service/internal/auth"
	"ctchen222/user-service/internal/validator"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUser      = errors.New("username or email already taken")
)

// ValidationError carries the itemized field failures of a request body.
type ValidationError struct {
	Fields []validator.FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "invalid fields: " + strings.Join(names, ", ")
}

// StorageError wraps a failure of the user store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// TokenIssuer issues a bearer token for an identity.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, error)
}

// UserService defines the interface for user-related business logic.
type UserService interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Register(ctx context.Context, req *models.CreateUserRequest) (*models.RegisterResponse, error)
	Update(ctx context.Context, id int64, req *models.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, id int64) error
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
}

type userService struct {
	userRepo   repository.UserRepository
	tokens     TokenIssuer
	bcryptCost int
}

type Option func(*userService)

// WithBcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *userService) {
		s.bcryptCost = cost
	}
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, tokens TokenIssuer, opts ...Option) UserService {
	s := &userService{
		userRepo:   userRepo,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a single user or ErrUserNotFound.
func (s *userService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.userRepo.GetUser(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "get user", Err: err}
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// List returns all users.
func (s *userService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.ListUsers(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list users", Err: err}
	}
	return users, nil
}

// Register validates the request, stores the user with a hashed password
// and issues a token bound to the new id and name. Length limits apply to
// the text as submitted; name, username and gender are HTML-escaped
// afterwards for storage. Nothing is written when validation fails.
func (s *userService) Register(ctx context.Context, req *models.CreateUserRequest) (*models.RegisterResponse, error) {
	clean := models.CreateUserRequest{
		Name:     strings.TrimSpace(req.Name),
		Username: strings.TrimSpace(req.Username),
		Gender:   strings.TrimSpace(req.Gender),
		Email:    validator.SanitizeEmail(req.Email),
		Password: req.Password,
	}
	if err := validateStruct(clean); err != nil {
		return nil, err
	}
	if len(clean.Password) > 72 {
		return nil, &ValidationError{Fields: []validator.FieldError{{Field: "password", Message: "must be at most 72 bytes"}}}
	}
	fields := escapeFields(clean.Name, clean.Username, clean.Gender, clean.Email)

	// Check if user already exists
	existing, err := s.userRepo.GetUserByUsername(ctx, fields.Username)
	if err != nil {
		return nil, &StorageError{Op: "get user by username", Err: err}
	}
	if existing != nil {
		return nil, ErrDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(clean.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.InsertUser(ctx, fields, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, &StorageError{Op: "insert user", Err: err}
	}

	token, err := s.tokens.Issue(auth.Identity{UserID: user.ID, Name: user.Name})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "User registered", "user.id", user.ID, "user.username", user.Username)
	return &models.RegisterResponse{User: user, Token: token}, nil
}

// Update replaces the profile fields of user id.
func (s *userService) Update(ctx context.Context, id int64, req *models.UpdateUserRequest) (*models.User, error) {
	clean := models.UpdateUserRequest{
		Name:     strings.TrimSpace(req.Name),
		Username: strings.TrimSpace(req.Username),
		Gender:   strings.TrimSpace(req.Gender),
		Email:    validator.SanitizeEmail(req.Email),
	}
	if err := validateStruct(clean); err != nil {
		return nil, err
	}

	fields := escapeFields(clean.Name, clean.Username, clean.Gender, clean.Email)
	ok, err := s.userRepo.UpdateUser(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, &StorageError{Op: "update user", Err: err}
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	return &models.User{ID: id, Name: fields.Name, Username: fields.Username, Gender: fields.Gender, Email: fields.Email}, nil
}

// Delete removes user id or returns ErrUserNotFound.
func (s *userService) Delete(ctx context.Context, id int64) error {
	ok, err := s.userRepo.DeleteUser(ctx, id)
	if err != nil {
		return &StorageError{Op: "delete user", Err: err}
	}
	if !ok {
		return ErrUserNotFound
	}
	slog.InfoContext(ctx, "User deleted", "user.id", id)
	return nil
}

// Login handles user login and returns a token on success. Every
// credential failure is reported as ErrInvalidCredentials.
func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	username := validator.EscapeText(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, &StorageError{Op: "get user by username", Err: err}
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		slog.WarnContext(ctx, "Login rejected", "user.username", username)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(auth.Identity{UserID: user.ID, Name: user.Name})
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{Token: token}, nil
}

func escapeFields(name, username, gender, email string) models.UserFields {
	return models.UserFields{
		Name:     validator.EscapeText(name),
		Username: validator.EscapeText(username),
		Gender:   validator.EscapeText(gender),
		Email:    email,
	}
}

func validateStruct(v any) error {
	fields, err := validator.Struct(v)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
