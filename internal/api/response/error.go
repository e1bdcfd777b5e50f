package response

import "net/http"

// Kind classifies a failed request. Each kind maps to one HTTP status.
type Kind int

const (
	KindServerError Kind = iota
	KindUnsupportedVersion
	KindNotFound
	KindMissingParameters
	KindInvalidCredentials
	KindUnauthorized
	KindMethodNotSupported
	KindConflict
	KindTooManyRequests
	KindStorageError
)

var kindNames = map[Kind]string{
	KindServerError:        "ServerError",
	KindUnsupportedVersion: "UnsupportedVersion",
	KindNotFound:           "NotFound",
	KindMissingParameters:  "MissingParameters",
	KindInvalidCredentials: "InvalidCredentials",
	KindUnauthorized:       "Unauthorized",
	KindMethodNotSupported: "MethodNotSupported",
	KindConflict:           "Conflict",
	KindTooManyRequests:    "TooManyRequests",
	KindStorageError:       "StorageError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Status returns the HTTP status code for k.
func (k Kind) Status() int {
	switch k {
	case KindUnsupportedVersion, KindMissingParameters:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindMethodNotSupported:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Detail is one itemized problem attached to an Error, usually a rejected
// body field.
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the failure value every handler reports. Err is the cause and is
// never serialized.
type Error struct {
	Kind    Kind
	Message string
	Details []Detail
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Code is the HTTP status of e.
func (e *Error) Code() int { return e.Kind.Status() }

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches cause to a new Error of the given kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details ...Detail) *Error {
	cp := *e
	cp.Details = append([]Detail(nil), details...)
	return &cp
}

// Body is the JSON shape of every error response.
type Body struct {
	Error   string   `json:"error"`
	Details []Detail `json:"details,omitempty"`
}

var (
	ErrUnsupportedVersion = NewError(KindUnsupportedVersion, "Unsupported API version")
	ErrResourceNotFound   = NewError(KindNotFound, "Resource not found!")
	ErrUserNotFound       = NewError(KindNotFound, "User not found")
	ErrMissingParameters  = NewError(KindMissingParameters, "Missing required parameters")
	ErrMissingUserID      = NewError(KindMissingParameters, "Missing user ID")
	ErrMethodNotSupported = NewError(KindMethodNotSupported, "Method not supported")
	ErrInvalidCredentials = NewError(KindInvalidCredentials, "Invalid Credentials")
	ErrUnauthorized       = NewError(KindUnauthorized, "Unauthorized")
	ErrTooManyRequests    = NewError(KindTooManyRequests, "Too many requests")
)
