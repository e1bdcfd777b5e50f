package controller

import (
	"ctchen222/user-service/internal/api/models"
	"ctchen222/user-service/internal/api/request"
	"ctchen222/user-service/internal/api/response"
	"ctchen222/user-service/internal/api/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserController handles user-related HTTP requests.
type UserController struct {
	userService service.UserService
	debug       bool
}

type Option func(*UserController)

// WithDebug exposes storage error causes in response bodies.
func WithDebug(debug bool) Option {
	return func(uc *UserController) {
		uc.debug = debug
	}
}

// NewUserController creates a new UserController.
func NewUserController(userService service.UserService, opts ...Option) *UserController {
	uc := &UserController{
		userService: userService,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Get returns the user named by the id segment.
func (uc *UserController) Get(c *gin.Context, req *request.Context) {
	id, ok := req.UserID()
	if !ok {
		response.Abort(c, response.ErrMissingUserID)
		return
	}

	user, err := uc.userService.Get(c.Request.Context(), id)
	if err != nil {
		response.Abort(c, uc.mapError(err))
		return
	}

	response.SuccessResponse(c, user)
}

// List returns every user.
func (uc *UserController) List(c *gin.Context, _ *request.Context) {
	users, err := uc.userService.List(c.Request.Context())
	if err != nil {
		response.Abort(c, uc.mapError(err))
		return
	}

	response.SuccessResponse(c, users)
}

// Create handles the user registration endpoint.
func (uc *UserController) Create(c *gin.Context, req *request.Context) {
	var body models.CreateUserRequest
	if err := req.Bind(&body); err != nil {
		response.Abort(c, response.Wrap(response.KindMissingParameters, "Invalid JSON body", err))
		return
	}

	resp, err := uc.userService.Register(c.Request.Context(), &body)
	if err != nil {
		response.Abort(c, uc.mapError(err))
		return
	}

	response.SuccessResponse(c, resp)
}

// Update replaces the profile fields of the user named by the id segment.
func (uc *UserController) Update(c *gin.Context, req *request.Context) {
	id, ok := req.UserID()
	if !ok {
		response.Abort(c, response.ErrMissingUserID)
		return
	}

	var body models.UpdateUserRequest
	if err := req.Bind(&body); err != nil {
		response.Abort(c, response.Wrap(response.KindMissingParameters, "Invalid JSON body", err))
		return
	}

	user, err := uc.userService.Update(c.Request.Context(), id, &body)
	if err != nil {
		response.Abort(c, uc.mapError(err))
		return
	}

	response.SuccessResponse(c, user)
}

// Delete removes the user named by the id segment.
func (uc *UserController) Delete(c *gin.Context, req *request.Context) {
	id, ok := req.UserID()
	if !ok {
		response.Abort(c, response.ErrMissingUserID)
		return
	}

	if err := uc.userService.Delete(c.Request.Context(), id); err != nil {
		response.Abort(c, uc.mapError(err))
		return
	}

	response.NoContent(c)
}

// Login handles the user login endpoint.
func (uc *UserController) Login(c *gin.Context, req *request.Context) {
	var body models.LoginRequest
	if err := req.Bind(&body); err != nil {
		response.Abort(c, response.ErrInvalidCredentials)
		return
	}

	resp, err := uc.userService.Login(c.Request.Context(), &body)
	if err != nil {
		response.Abort(c, uc.mapError(err))
		return
	}

	response.JSON(c, http.StatusOK, resp)
}
