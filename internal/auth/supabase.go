package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SupabaseVerifier delegates token checks to the identity provider's user
// endpoint, so revoked accounts are rejected as soon as the provider knows.
type SupabaseVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSupabaseVerifier(baseURL, apiKey string, timeout time.Duration) *SupabaseVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type supabaseUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

type supabaseError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (e supabaseError) text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Msg != "":
		return e.Msg
	default:
		return e.ErrorDescription
	}
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	ctx, span := otel.Tracer("humana-api/auth").Start(ctx, "auth.supabase.verify")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity provider unreachable")
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrProviderFailure, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		var perr supabaseError
		_ = json.Unmarshal(body, &perr)
		if msg := perr.text(); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, msg)
		}
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: identity provider returned %d", ErrProviderFailure, resp.StatusCode)
	}

	var user supabaseUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", ErrProviderFailure, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: user payload has no id", ErrProviderFailure)
	}

	return &Principal{
		ID:    user.ID,
		Email: user.Email,
		Role:  effectiveRole(user.Role, user.AppMetadata),
		Admin: isAdmin(user.Role, user.AppMetadata),
		Claims: map[string]interface{}{
			"app_metadata":  user.AppMetadata,
			"user_metadata": user.UserMetadata,
		},
	}, nil
}
