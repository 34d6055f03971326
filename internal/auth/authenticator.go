package auth

import (
	"crypto/rsa"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Recorder counts authentication outcomes.
type Recorder interface {
	ObserveAuth(outcome string)
}

// Credentials is the Authorization header as it arrived on a request.
// Present distinguishes an absent header from an empty one.
type Credentials struct {
	Header  string
	Present bool
}

// CredentialsFromRequest reads the Authorization header of r.
func CredentialsFromRequest(r *http.Request) Credentials {
	values := r.Header.Values("Authorization")
	if len(values) == 0 {
		return Credentials{}
	}
	return Credentials{Header: values[0], Present: true}
}

// Options configures an Authenticator.
type Options struct {
	// Key verifies RS256 signatures. A nil key means none is configured.
	Key *rsa.PublicKey
	// Degraded allows anonymous and unverified-fallback modes. It must only
	// be set outside production.
	Degraded bool
	Logger   *slog.Logger
	Recorder Recorder
}

// Authenticator turns request credentials into an authentication Context.
// It holds no mutable state and is safe for concurrent use.
type Authenticator struct {
	key      *rsa.PublicKey
	degraded bool
	logger   *slog.Logger
	recorder Recorder
	parser   *jwt.Parser
}

func NewAuthenticator(opts Options) *Authenticator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		key:      opts.Key,
		degraded: opts.Degraded,
		logger:   logger,
		recorder: opts.Recorder,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})),
	}
}

// Degraded reports whether the authenticator may return non-verified modes.
func (a *Authenticator) Degraded() bool {
	return a.degraded
}

// Authenticate applies the decision table to c. Errors wrap ErrUnauthorized,
// ErrInvalidToken or ErrServerConfiguration.
func (a *Authenticator) Authenticate(c Credentials) (*Context, error) {
	in := decisionInput{
		env:    envProduction,
		key:    keyAbsent,
		verify: checkSkipped,
		decode: checkSkipped,
	}
	if a.degraded {
		in.env = envDegradable
	}
	if a.key != nil {
		in.key = keyPresent
	}

	token := strings.TrimSpace(strings.TrimPrefix(c.Header, bearerPrefix))
	switch {
	case !c.Present:
		in.credential = credentialMissing
	case token == "":
		in.credential = credentialEmpty
	default:
		in.credential = credentialPresent
	}

	var (
		claims    map[string]any
		verifyErr error
	)
	if in.credential == credentialPresent {
		if a.key != nil {
			claims, verifyErr = a.verify(token)
			in.verify = checkOf(verifyErr)
		}
		if in.verify != checkPassed && a.degraded {
			var decodeErr error
			claims, decodeErr = decodeUnverified(token)
			in.decode = checkOf(decodeErr)
		}
	}

	mode, err := decide(in)
	if err != nil {
		return nil, a.reject(in, err, verifyErr)
	}

	authCtx := &Context{Mode: mode}
	if mode != ModeAnonymous {
		authCtx.Claims = claims
		authCtx.TenantID = ExtractTenantID(claims)
	}
	a.accept(authCtx, in, verifyErr)
	return authCtx, nil
}

func (a *Authenticator) verify(raw string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.key, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

func (a *Authenticator) accept(authCtx *Context, in decisionInput, verifyErr error) {
	a.observe(string(authCtx.Mode))

	switch authCtx.Mode {
	case ModeAnonymous:
		a.logger.Debug("no authorization header, continuing anonymously")
	case ModeUnverifiedFallback:
		if in.key == keyAbsent {
			a.logger.Warn("verification key not configured, using unverified token claims",
				"tenant_id", authCtx.TenantID)
		} else {
			a.logger.Warn("token verification failed, using unverified token claims",
				"tenant_id", authCtx.TenantID, "error", verifyErr)
		}
	default:
		a.logger.Debug("token verified", "tenant_id", authCtx.TenantID)
	}

	if !authCtx.HasTenant() && authCtx.Mode != ModeAnonymous {
		a.logger.Warn("authenticated token carries no instance id", "mode", authCtx.Mode)
	}
}

func (a *Authenticator) reject(in decisionInput, err, verifyErr error) error {
	switch err {
	case ErrUnauthorized:
		a.observe("unauthorized")
		a.logger.Debug("request has no bearer token")
		return err
	case ErrServerConfiguration:
		a.observe("configuration_error")
		a.logger.Error("verification key not configured")
		return err
	default:
		a.observe("invalid_token")
		if verifyErr == nil {
			a.logger.Warn("token could not be decoded")
			return err
		}
		a.logger.Warn("token verification failed", "error", verifyErr)
		return fmt.Errorf("%w: %v", err, verifyErr)
	}
}

func (a *Authenticator) observe(outcome string) {
	if a.recorder != nil {
		a.recorder.ObserveAuth(outcome)
	}
}
