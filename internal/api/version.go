// Package api provides API versioning for the scimgate HTTP surface
package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderAPIVersion is the response header that contains the API version
	HeaderAPIVersion = "X-API-Version"

	// DefaultAPIVersion is the default API version if none is specified
	DefaultAPIVersion = "2.0"
)

// VersionMiddleware creates middleware that adds X-API-Version header to responses
// and optionally handles version negotiation
func VersionMiddleware(version string, supported []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(HeaderAPIVersion, version)

		if requestedVersion := c.GetHeader(HeaderAPIVersion); requestedVersion != "" {
			if !isVersionSupported(requestedVersion, supported) {
				c.Abort()
				c.JSON(406, gin.H{
					"error":              "unsupported_api_version",
					"message":            "Requested API version is not supported",
					"supported_versions": supported,
				})
				return
			}
			c.Set("api_version", requestedVersion)
		} else {
			c.Set("api_version", version)
		}

		c.Next()
	}
}

// isVersionSupported checks if a version is in the supported list
func isVersionSupported(version string, supported []string) bool {
	// Support both "2" and "2.0" style versions
	for _, v := range supported {
		if v == version || strings.HasPrefix(v, version+".") {
			return true
		}
	}
	return false
}

// GetVersion extracts the API version from the gin context
func GetVersion(c *gin.Context) string {
	if v, exists := c.Get("api_version"); exists {
		if version, ok := v.(string); ok {
			return version
		}
	}
	return DefaultAPIVersion
}

// StandardVersionMiddleware returns a middleware for the SCIM v2 API
func StandardVersionMiddleware() gin.HandlerFunc {
	return VersionMiddleware("2.0", []string{"2.0", "2"})
}
