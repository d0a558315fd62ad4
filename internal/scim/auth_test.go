package scim

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func signTestJWT(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("hashed-secret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	newRouter := func() http.Handler {
		svc, _, router := newTestService()
		svc.config.SCIM.BearerTokens = []string{testToken, string(hashed)}
		return router
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bare token without scheme",
			header:     testToken,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown token",
			header:     "Bearer wrong-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "plaintext configured token",
			header:     "Bearer " + testToken,
			wantStatus: http.StatusOK,
		},
		{
			name:       "scheme is case-insensitive",
			header:     "bearer " + testToken,
			wantStatus: http.StatusOK,
		},
		{
			name:       "bcrypt-hashed configured token",
			header:     "Bearer hashed-secret-token",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/scim/v2/Users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if got := w.Header().Get("WWW-Authenticate"); got == "" {
					t.Error("WWW-Authenticate header missing on 401")
				}
			}
		})
	}
}

func TestAuthMiddleware_JWT(t *testing.T) {
	const secret = "test-jwt-secret"

	tests := []struct {
		name       string
		token      func(t *testing.T) string
		wantStatus int
	}{
		{
			name: "valid token with scim scope",
			token: func(t *testing.T) string {
				return signTestJWT(t, secret, jwt.MapClaims{"scope": "scim"})
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "scim among multiple scopes",
			token: func(t *testing.T) string {
				return signTestJWT(t, secret, jwt.MapClaims{"scope": "openid profile scim"})
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "scp claim list form",
			token: func(t *testing.T) string {
				return signTestJWT(t, secret, jwt.MapClaims{"scp": []string{"scim"}})
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "missing scim scope",
			token: func(t *testing.T) string {
				return signTestJWT(t, secret, jwt.MapClaims{"scope": "openid profile"})
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "no scope claim at all",
			token: func(t *testing.T) string {
				return signTestJWT(t, secret, jwt.MapClaims{"sub": "provisioner"})
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong signing key",
			token: func(t *testing.T) string {
				return signTestJWT(t, "other-secret", jwt.MapClaims{"scope": "scim"})
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				return signTestJWT(t, secret, jwt.MapClaims{
					"scope": "scim",
					"exp":   time.Now().Add(-time.Hour).Unix(),
				})
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, router := newTestService()
			w := doRequestToken(router, http.MethodGet, "/scim/v2/Users", nil, tt.token(t))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_JWTDisabledWithoutSecret(t *testing.T) {
	svc, _, router := newTestService()
	svc.config.JWTSecret = ""

	token := signTestJWT(t, "test-jwt-secret", jwt.MapClaims{"scope": "scim"})
	w := doRequestToken(router, http.MethodGet, "/scim/v2/Users", nil, token)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 when JWT validation is disabled", w.Code)
	}
}

func TestAuthMiddleware_ErrorBody(t *testing.T) {
	_, _, router := newTestService()

	w := doRequestToken(router, http.MethodGet, "/scim/v2/Users", nil, "wrong-token")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body errorBody
	decodeJSON(t, w, &body)
	if len(body.Schemas) != 1 || body.Schemas[0] != SchemaError {
		t.Errorf("schemas = %v", body.Schemas)
	}
	if body.Status != "401" {
		t.Errorf("status = %q, want 401", body.Status)
	}
}
