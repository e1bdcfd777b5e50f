package router

import (
	"ctchen222/user-service/internal/api/controller"
	"ctchen222/user-service/internal/api/request"
	"ctchen222/user-service/internal/api/response"
	"ctchen222/user-service/internal/auth"
	"ctchen222/user-service/internal/config"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("router")

const (
	loginResource = "login"

	// IdentityKey holds the verified auth.Identity in the gin context.
	IdentityKey = "identity"
)

// TokenVerifier checks a bearer token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Dispatcher routes every /<mount>/<version>/<resource>[/<id>] request.
// A present version segment is checked before anything else, including
// the mount, and authentication happens before any storage access.
type Dispatcher struct {
	api    config.APIConfig
	users  *controller.UserController
	tokens TokenVerifier
}

func NewDispatcher(api config.APIConfig, users *controller.UserController, tokens TokenVerifier) *Dispatcher {
	return &Dispatcher{
		api:    api,
		users:  users,
		tokens: tokens,
	}
}

// Handle is the gin handler for the catch-all route.
func (d *Dispatcher) Handle(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "router.Dispatch", trace.WithAttributes(
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.path", c.Request.URL.Path),
	))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	req, err := request.Parse(c.Request, d.api.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, request.ErrBodyTooLarge) {
			d.fail(c, span, response.Wrap(response.KindMissingParameters, "Request body too large", err))
			return
		}
		d.fail(c, span, response.Wrap(response.KindServerError, "Internal server error", err))
		return
	}

	if req.HasVersion && req.Version != d.api.Version {
		d.fail(c, span, response.ErrUnsupportedVersion)
		return
	}
	if req.Mount != d.api.Mount {
		d.fail(c, span, response.ErrResourceNotFound)
		return
	}

	span.SetAttributes(attribute.String("api.resource", req.Resource))

	switch req.Resource {
	case d.api.Resource:
		d.dispatchUsers(c, span, req)
	case loginResource:
		d.dispatchLogin(c, span, req)
	default:
		d.fail(c, span, response.ErrResourceNotFound)
	}

	if c.Writer.Status() >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(c.Writer.Status()))
	}
}

func (d *Dispatcher) dispatchUsers(c *gin.Context, span trace.Span, req *request.Context) {
	switch req.Method {
	case http.MethodGet:
		if !d.authenticate(c, span, req) {
			return
		}
		if req.HasID() {
			d.users.Get(c, req)
		} else {
			d.users.List(c, req)
		}
	case http.MethodPost:
		d.users.Create(c, req)
	case http.MethodPut:
		if !d.authenticate(c, span, req) {
			return
		}
		if !req.HasID() {
			d.fail(c, span, response.ErrMissingUserID)
			return
		}
		d.users.Update(c, req)
	case http.MethodDelete:
		if !d.authenticate(c, span, req) {
			return
		}
		if !req.HasID() {
			d.fail(c, span, response.ErrMissingUserID)
			return
		}
		d.users.Delete(c, req)
	default:
		d.fail(c, span, response.ErrMethodNotSupported)
	}
}

func (d *Dispatcher) dispatchLogin(c *gin.Context, span trace.Span, req *request.Context) {
	if req.Method != http.MethodPost {
		d.fail(c, span, response.ErrMethodNotSupported)
		return
	}
	d.users.Login(c, req)
}

// authenticate verifies the bearer token and stores the identity in c.
// On failure it writes a 401 and returns false.
func (d *Dispatcher) authenticate(c *gin.Context, span trace.Span, req *request.Context) bool {
	if req.TokenErr != nil {
		d.fail(c, span, response.Wrap(response.KindUnauthorized, response.ErrUnauthorized.Message, req.TokenErr))
		return false
	}

	identity, err := d.tokens.Verify(req.Token)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "Token rejected", "error", err, "http.path", req.Path)
		d.fail(c, span, response.Wrap(response.KindUnauthorized, tokenErrorMessage(err), err))
		return false
	}

	span.SetAttributes(attribute.Int64("user.id", identity.UserID))
	c.Set(IdentityKey, identity)
	return true
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpired):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Token signature is invalid"
	case errors.Is(err, auth.ErrNotYetValid):
		return "Token not yet valid"
	default:
		return response.ErrUnauthorized.Message
	}
}

func (d *Dispatcher) fail(c *gin.Context, span trace.Span, err *response.Error) {
	span.SetAttributes(attribute.String("api.error", err.Kind.String()))
	response.Abort(c, err)
}
