package auth

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized        = errors.New("no authorization token provided")
	ErrInvalidToken        = errors.New("invalid authorization token")
	ErrServerConfiguration = errors.New("server configuration error")
)

// Mode records how a request's identity was established.
type Mode string

const (
	ModeVerified           Mode = "verified"
	ModeUnverifiedFallback Mode = "unverified-fallback"
	ModeAnonymous          Mode = "anonymous"
)

// Context is the per-request result of authentication. It lives only for
// the request it was created for and is never persisted.
type Context struct {
	Claims   map[string]any
	TenantID string
	Mode     Mode
}

// HasTenant reports whether an instance id could be derived from the claims.
func (c *Context) HasTenant() bool {
	return c != nil && c.TenantID != ""
}

// Permissions returns the permission names granted by the token's
// data.metadata.permissions claim.
func (c *Context) Permissions() []string {
	if c == nil {
		return nil
	}
	raw, ok := lookupPath(c.Claims, "data", "metadata", "permissions")
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	perms := make([]string, 0, len(list))
	for _, p := range list {
		if s, ok := p.(string); ok {
			perms = append(perms, s)
		}
	}
	return perms
}

type authContextKey struct{}

// WithContext stores the authentication result in ctx.
func WithContext(ctx context.Context, authCtx *Context) context.Context {
	return context.WithValue(ctx, authContextKey{}, authCtx)
}

// FromContext retrieves the authentication result from ctx.
func FromContext(ctx context.Context) *Context {
	authCtx, _ := ctx.Value(authContextKey{}).(*Context)
	return authCtx
}

// TenantID returns the authenticated instance id, or "" when absent.
func TenantID(ctx context.Context) string {
	if authCtx := FromContext(ctx); authCtx != nil {
		return authCtx.TenantID
	}
	return ""
}
