package scim

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/scimgate/scimgate/internal/metrics"
)

// requiredScope is the OAuth scope a JWT must carry to use the
// provisioning API
const requiredScope = "scim"

// AuthMiddleware gates the Users and Groups endpoints behind a bearer
// token. Two credential forms are accepted: a static provisioning token
// from the configuration (bcrypt-hashed entries are compared with
// bcrypt, plaintext entries in constant time), or an HS256 JWT signed
// with the configured secret and carrying the scim scope.
func (s *Service) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			s.unauthorized(c, "missing", "Authorization header is required")
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			s.unauthorized(c, "malformed", "Authorization header must be a bearer token")
			return
		}

		if s.matchStaticToken(token) {
			metrics.RecordAuthAttempt("bearer", "success")
			c.Next()
			return
		}

		if s.config.JWTSecret != "" && s.validateJWT(token) {
			metrics.RecordAuthAttempt("jwt", "success")
			c.Next()
			return
		}

		s.unauthorized(c, "invalid", "Invalid bearer token")
	}
}

func (s *Service) unauthorized(c *gin.Context, outcome, detail string) {
	metrics.RecordAuthAttempt("bearer", outcome)
	s.logger.Warn("scim auth rejected",
		zap.String("reason", outcome),
		zap.String("client_ip", c.ClientIP()))

	c.Header("WWW-Authenticate", `Bearer realm="scim"`)
	writeJSON(c, http.StatusUnauthorized, errorBody{
		Schemas: []string{SchemaError},
		Status:  "401",
		Detail:  detail,
	})
	c.Abort()
}

// matchStaticToken compares the presented token against each configured
// provisioning token
func (s *Service) matchStaticToken(token string) bool {
	for _, configured := range s.config.SCIM.BearerTokens {
		if isBcryptHash(configured) {
			if bcrypt.CompareHashAndPassword([]byte(configured), []byte(token)) == nil {
				return true
			}
			continue
		}
		if subtle.ConstantTimeCompare([]byte(configured), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// validateJWT checks signature, expiry and the scim scope
func (s *Service) validateJWT(token string) bool {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return false
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	return hasScope(claims, requiredScope)
}

// hasScope accepts both the space-separated scope claim and the scp
// list claim
func hasScope(claims jwt.MapClaims, scope string) bool {
	if raw, ok := claims["scope"].(string); ok {
		for _, s := range strings.Fields(raw) {
			if s == scope {
				return true
			}
		}
	}
	if raw, ok := claims["scp"].([]interface{}); ok {
		for _, entry := range raw {
			if s, ok := entry.(string); ok && s == scope {
				return true
			}
		}
	}
	return false
}
