package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"humana-api/internal/config"
	"humana-api/utils"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrProviderFailure = errors.New("identity provider failure")
)

// Verifier validates a bearer credential and resolves the caller.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// NewVerifier builds the verifier for the strategy chosen in config.
func NewVerifier(cfg *config.Config) (Verifier, error) {
	switch cfg.AuthStrategy {
	case config.AuthStrategyProvider:
		return NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseKey, cfg.AuthTimeout), nil
	case config.AuthStrategyJWT:
		return NewJWTVerifier(cfg.SupabaseJWTSecret), nil
	}
	return nil, fmt.Errorf("unsupported auth strategy %q", cfg.AuthStrategy)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Authenticate resolves the caller from an Authorization header.
func Authenticate(ctx context.Context, v Verifier, header string) (*Principal, *utils.AppError) {
	token := BearerToken(header)
	if token == "" {
		return nil, utils.NewAuthError(http.StatusUnauthorized, "missing_bearer_token", "")
	}

	principal, err := v.Verify(ctx, token)
	if err == nil {
		return principal, nil
	}

	var appErr *utils.AppError
	switch {
	case errors.Is(err, ErrInvalidToken):
		msg := providerMessage(err, ErrInvalidToken)
		if msg == "" {
			msg = "User not found"
		}
		appErr = utils.NewAuthError(http.StatusUnauthorized, "invalid_token", msg)
	default:
		appErr = utils.NewAuthError(http.StatusUnauthorized, "authentication_error", "")
	}
	appErr.Err = err
	return nil, appErr
}

// AuthenticateAdmin is Authenticate plus the administrator check.
func AuthenticateAdmin(ctx context.Context, v Verifier, header string) (*Principal, *utils.AppError) {
	principal, appErr := Authenticate(ctx, v, header)
	if appErr != nil {
		return nil, appErr
	}
	if !principal.Admin {
		return nil, utils.NewAuthError(http.StatusForbidden, "forbidden_admin_only", "")
	}
	return principal, nil
}

// providerMessage strips the sentinel prefix so only the provider's own text
// reaches the client.
func providerMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	if msg == sentinel.Error() {
		return ""
	}
	return msg
}
