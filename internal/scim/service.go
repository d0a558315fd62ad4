package scim

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scimgate/scimgate/internal/common/config"
)

// Service exposes the SCIM v2 REST surface over the directory store.
type Service struct {
	store  Store
	config *config.Config
	logger *zap.Logger
}

// NewService creates the SCIM service
func NewService(store Store, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		config: cfg,
		logger: logger.With(zap.String("component", "scim")),
	}
}

// RegisterRoutes mounts the SCIM endpoints under the configured base
// path. Discovery documents are served unauthenticated; everything
// else requires a bearer token.
func (s *Service) RegisterRoutes(router *gin.Engine) {
	base := router.Group(s.config.SCIM.BasePath)

	base.GET("", s.handleDiscovery)
	base.GET("/ServiceProviderConfig", s.handleServiceProviderConfig)
	base.GET("/ResourceTypes", s.handleResourceTypes)
	base.GET("/ResourceTypes/:name", s.handleResourceType)
	base.GET("/Schemas", s.handleSchemas)
	base.GET("/Schemas/:urn", s.handleSchema)

	authed := base.Group("")
	authed.Use(s.AuthMiddleware())

	authed.GET("/Users", s.handleListUsers)
	authed.POST("/Users", s.handleCreateUser)
	authed.GET("/Users/:id", s.handleGetUser)
	authed.PUT("/Users/:id", s.handleReplaceUser)
	authed.PATCH("/Users/:id", s.handlePatchUser)
	authed.DELETE("/Users/:id", s.handleDeleteUser)

	authed.GET("/Groups", s.handleListGroups)
	authed.POST("/Groups", s.handleCreateGroup)
	authed.GET("/Groups/:id", s.handleGetGroup)
	authed.PUT("/Groups/:id", s.handleReplaceGroup)
	authed.PATCH("/Groups/:id", s.handlePatchGroup)
	authed.DELETE("/Groups/:id", s.handleDeleteGroup)
}

// handleDiscovery serves a small index of the SCIM surface at the base
// path root
func (s *Service) handleDiscovery(c *gin.Context) {
	base := s.baseURL(c)
	writeJSON(c, http.StatusOK, gin.H{
		"description": "SCIM 2.0 provisioning endpoint",
		"endpoints": gin.H{
			"Users":                 base + "/Users",
			"Groups":                base + "/Groups",
			"ServiceProviderConfig": base + "/ServiceProviderConfig",
			"ResourceTypes":         base + "/ResourceTypes",
			"Schemas":               base + "/Schemas",
		},
	})
}

// baseURL reconstructs the absolute URL of the SCIM base path from the
// incoming request, honoring forwarded-proto from a fronting proxy
func (s *Service) baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, s.config.SCIM.BasePath)
}

// pagination carries the parsed startIndex/count pair
type pagination struct {
	startIndex int
	count      int
}

// parsePagination applies the SCIM 1-based pagination rules: startIndex
// defaults to 1 (values below 1 are clamped), count defaults to the
// configured page size and is capped at the maximum.
func (s *Service) parsePagination(c *gin.Context) (pagination, error) {
	p := pagination{startIndex: 1, count: s.config.SCIM.DefaultPageSize}

	if raw := c.Query("startIndex"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, ErrInvalidValue(fmt.Sprintf("startIndex %q is not an integer", raw))
		}
		if n < 1 {
			n = 1
		}
		p.startIndex = n
	}

	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, ErrInvalidValue(fmt.Sprintf("count %q is not an integer", raw))
		}
		if n < 0 {
			n = 0
		}
		p.count = n
	}
	if p.count > s.config.SCIM.MaxPageSize {
		p.count = s.config.SCIM.MaxPageSize
	}

	return p, nil
}

// page slices one page out of the filtered result set
func page[T any](items []T, p pagination) []T {
	start := p.startIndex - 1
	if start >= len(items) {
		return nil
	}
	end := start + p.count
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// checkListParams rejects the query parameters the service advertises
// as unsupported
func checkListParams(c *gin.Context) error {
	if c.Query("sortBy") != "" || c.Query("sortOrder") != "" {
		return ErrUnsupported("Sorting is not supported")
	}
	if c.Query("attributes") != "" || c.Query("excludedAttributes") != "" {
		return ErrUnsupported("Attribute projection is not supported")
	}
	return nil
}

// checkContentType enforces the SCIM media type on mutating requests.
// Plain application/json is accepted for IdPs that do not send the
// SCIM-specific type.
func checkContentType(c *gin.Context) error {
	raw := c.GetHeader("Content-Type")
	if raw == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return ErrInvalidValue(fmt.Sprintf("malformed Content-Type %q", raw))
	}
	switch strings.ToLower(mediaType) {
	case ContentType, "application/json":
		return nil
	default:
		return &Error{Status: http.StatusUnsupportedMediaType, Detail: fmt.Sprintf("unsupported media type %q", mediaType)}
	}
}

// bindBody decodes a request body, mapping malformed JSON onto
// invalidSyntax
func bindBody(c *gin.Context, out any) error {
	if err := checkContentType(c); err != nil {
		return err
	}
	if err := c.ShouldBindJSON(out); err != nil {
		return &Error{Status: http.StatusBadRequest, ScimType: TypeInvalidSyntax, Detail: "request body is not valid JSON for this resource"}
	}
	return nil
}

// checkPatchSchemas validates the PatchOp message URN when schemas is
// present, and that the request carries at least one operation
func checkPatchSchemas(req *PatchRequest) error {
	if len(req.Schemas) > 0 {
		found := false
		for _, schema := range req.Schemas {
			if schema == SchemaPatchOp {
				found = true
				break
			}
		}
		if !found {
			return ErrInvalidValue(fmt.Sprintf("PATCH requests must declare the %s schema", SchemaPatchOp))
		}
	}
	if len(req.Operations) == 0 {
		return ErrInvalidValue("PATCH requests must carry at least one operation")
	}
	return nil
}

// writeJSON renders a response with the SCIM media type
func writeJSON(c *gin.Context, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		c.Data(http.StatusInternalServerError, ContentType,
			[]byte(`{"schemas":["`+SchemaError+`"],"status":"500","detail":"An internal error occurred"}`))
		return
	}
	c.Data(status, ContentType, data)
}
