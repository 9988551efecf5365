package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-entropy-000"

func signed(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := SignToken(testSecret, claims)
	require.NoError(t, err)
	return token
}

func validClaims(sub string, exp time.Time) Claims {
	return Claims{
		Email: sub + "@example.org",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc "))
	assert.Empty(t, BearerToken(""))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken("Bearer "))
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		p, err := v.Verify(ctx, signed(t, validClaims("user-1", time.Now().Add(time.Hour))))
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.ID)
		assert.Equal(t, "user-1@example.org", p.Email)
		assert.False(t, p.Admin)
	})

	t.Run("admin from app_metadata", func(t *testing.T) {
		claims := validClaims("admin-1", time.Now().Add(time.Hour))
		claims.AppMetadata = map[string]interface{}{"role": "admin"}
		p, err := v.Verify(ctx, signed(t, claims))
		require.NoError(t, err)
		assert.True(t, p.Admin)
		assert.Equal(t, "admin", p.Role)
	})

	t.Run("expired token", func(t *testing.T) {
		_, err := v.Verify(ctx, signed(t, validClaims("user-1", time.Now().Add(-time.Minute))))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := SignToken("another-secret", validClaims("user-1", time.Now().Add(time.Hour)))
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("user-1", time.Now().Add(time.Hour))).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.Verify(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestSupabaseVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			_, _ = w.Write([]byte(`{"id":"u-1","email":"a@b.c","role":"authenticated","app_metadata":{"role":"admin"}}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT: token is expired"}`))
		}
	}))
	defer srv.Close()

	v := NewSupabaseVerifier(srv.URL+"/", "service-key", time.Second)
	ctx := context.Background()

	p, err := v.Verify(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.ID)
	assert.True(t, p.Admin)

	_, err = v.Verify(ctx, "stale")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "token is expired")

	_, err = v.Verify(ctx, "broken")
	assert.ErrorIs(t, err, ErrProviderFailure)
}

func TestSupabaseVerifier_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	v := NewSupabaseVerifier(srv.URL, "k", 20*time.Millisecond)
	_, err := v.Verify(context.Background(), "good")
	assert.ErrorIs(t, err, ErrProviderFailure)
}

type stubVerifier struct {
	principal *Principal
	err       error
	calls     int
}

func (s *stubVerifier) Verify(context.Context, string) (*Principal, error) {
	s.calls++
	return s.principal, s.err
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("missing header never reaches verifier", func(t *testing.T) {
		v := &stubVerifier{}
		_, appErr := Authenticate(ctx, v, "")
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusUnauthorized, appErr.Status)
		assert.Equal(t, "missing_bearer_token", appErr.Code)
		assert.Zero(t, v.calls)
	})

	t.Run("invalid token carries provider message", func(t *testing.T) {
		v := &stubVerifier{err: fmt.Errorf("%w: signature is invalid", ErrInvalidToken)}
		_, appErr := Authenticate(ctx, v, "Bearer x")
		require.NotNil(t, appErr)
		assert.Equal(t, "invalid_token", appErr.Code)
		assert.Equal(t, "signature is invalid", appErr.Message)
	})

	t.Run("invalid token without provider message", func(t *testing.T) {
		v := &stubVerifier{err: ErrInvalidToken}
		_, appErr := Authenticate(ctx, v, "Bearer x")
		require.NotNil(t, appErr)
		assert.Equal(t, "invalid_token", appErr.Code)
		assert.Equal(t, "User not found", appErr.Message)
	})

	t.Run("provider failure", func(t *testing.T) {
		v := &stubVerifier{err: ErrProviderFailure}
		_, appErr := Authenticate(ctx, v, "Bearer x")
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusUnauthorized, appErr.Status)
		assert.Equal(t, "authentication_error", appErr.Code)
	})

	t.Run("admin gate", func(t *testing.T) {
		v := &stubVerifier{principal: &Principal{ID: "u"}}
		_, appErr := AuthenticateAdmin(ctx, v, "Bearer x")
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusForbidden, appErr.Status)
		assert.Equal(t, "forbidden_admin_only", appErr.Code)

		v.principal.Admin = true
		p, appErr := AuthenticateAdmin(ctx, v, "Bearer x")
		assert.Nil(t, appErr)
		assert.Equal(t, "u", p.ID)
	})
}
