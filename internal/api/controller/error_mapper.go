package controller

import (
	"ctchen222/user-service/internal/api/response"
	"ctchen222/user-service/internal/api/service"
	"errors"
)

// mapError translates service errors into response errors.
func (uc *UserController) mapError(err error) *response.Error {
	var verr *service.ValidationError
	var serr *service.StorageError

	switch {
	case errors.As(err, &verr):
		details := make([]response.Detail, len(verr.Fields))
		for i, f := range verr.Fields {
			details[i] = response.Detail{Field: f.Field, Message: f.Message}
		}
		return response.Wrap(response.KindMissingParameters, response.ErrMissingParameters.Message, err).WithDetails(details...)
	case errors.Is(err, service.ErrUserNotFound):
		return response.Wrap(response.KindNotFound, response.ErrUserNotFound.Message, err)
	case errors.Is(err, service.ErrInvalidCredentials):
		return response.Wrap(response.KindInvalidCredentials, response.ErrInvalidCredentials.Message, err)
	case errors.Is(err, service.ErrDuplicateUser):
		return response.Wrap(response.KindConflict, "Username or email already exists", err)
	case errors.As(err, &serr):
		msg := "Database error"
		if uc.debug {
			msg += ": " + serr.Err.Error()
		}
		return response.Wrap(response.KindStorageError, msg, err)
	default:
		return response.Wrap(response.KindServerError, "Internal server error", err)
	}
}
