// Package request turns an incoming HTTP request into the immutable value
// the dispatcher routes on.
package request

import (
	"bytes"
	"ctchen222/user-service/internal/auth"
	"ctchen222/user-service/internal/validator"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var ErrBodyTooLarge = errors.New("request body too large")

// Context is built once per request and never mutated afterwards.
type Context struct {
	Method string
	Path   string

	// Path segments after the leading slash: /<Mount>/<Version>/<Resource>/<RawID>.
	Mount    string
	Version  string
	Resource string
	RawID    string

	// HasVersion reports whether the version segment exists, even if empty.
	HasVersion bool

	// ID is RawID filtered to its decimal digits.
	ID string

	Token    string
	TokenErr error

	body []byte
}

// Parse reads the method, path segments, bearer token and at most maxBody
// bytes of body from r. A maxBody of zero or less disables the limit.
func Parse(r *http.Request, maxBody int64) (*Context, error) {
	segments := strings.Split(r.URL.Path, "/")
	seg := func(i int) string {
		if i < len(segments) {
			return segments[i]
		}
		return ""
	}

	ctx := &Context{
		Method:   r.Method,
		Path:     r.URL.Path,
		Mount:    seg(1),
		Version:  seg(2),
		Resource: seg(3),
		RawID:    seg(4),
	}
	ctx.HasVersion = len(segments) > 2
	ctx.ID = validator.DigitsOnly(ctx.RawID)
	ctx.Token, ctx.TokenErr = auth.BearerToken(r.Header.Get("Authorization"))

	if r.Body != nil {
		reader := io.Reader(r.Body)
		if maxBody > 0 {
			reader = io.LimitReader(r.Body, maxBody+1)
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if maxBody > 0 && int64(len(body)) > maxBody {
			return nil, ErrBodyTooLarge
		}
		ctx.body = body
	}

	return ctx, nil
}

// HasID reports whether the id segment is present and not blank.
func (c *Context) HasID() bool {
	return strings.TrimSpace(c.RawID) != ""
}

// UserID returns the numeric id, or false when no digits remain after
// filtering.
func (c *Context) UserID() (int64, bool) {
	if c.ID == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Bind decodes the JSON body into v. An empty body decodes as {}.
func (c *Context) Bind(v any) error {
	body := bytes.TrimSpace(c.body)
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
