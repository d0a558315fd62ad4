package config

import (
	"strings"

	"go.uber.org/zap"
)

// ProductionWarnings returns a list of insecure configuration findings that
// matter when the service runs in production.
func (c *Config) ProductionWarnings() []string {
	var warnings []string

	if len(c.SCIM.BearerTokens) == 0 && c.JWTSecret == "" {
		warnings = append(warnings, "no SCIM bearer tokens or JWT secret configured; all provisioning requests will be rejected")
	}
	for _, token := range c.SCIM.BearerTokens {
		if !strings.HasPrefix(token, "$2a$") && !strings.HasPrefix(token, "$2b$") && !strings.HasPrefix(token, "$2y$") {
			warnings = append(warnings, "scim.bearer_tokens contains a plaintext token; use bcrypt hashes in production")
			break
		}
	}
	if !c.TLS.Enabled {
		warnings = append(warnings, "tls.enabled is false; bearer tokens will transit in cleartext unless TLS terminates upstream")
	}
	if strings.Contains(c.DatabaseURL, "sslmode=disable") && c.DatabaseSSLMode == "" {
		warnings = append(warnings, "database connection has SSL disabled")
	}
	if !c.EnableRateLimit {
		warnings = append(warnings, "rate limiting is disabled")
	}

	return warnings
}

// LogSecurityWarnings logs actionable security warnings when running in
// production with insecure defaults. Call this at service startup after
// configuration is loaded.
func (c *Config) LogSecurityWarnings(log *zap.Logger) {
	if !c.IsProduction() {
		return
	}

	warnings := c.ProductionWarnings()

	for _, w := range warnings {
		log.Warn("SECURITY", zap.String("warning", w))
	}

	if len(warnings) > 0 {
		log.Warn("SECURITY: production deployment has insecure configuration",
			zap.Int("warning_count", len(warnings)))
	}
}
