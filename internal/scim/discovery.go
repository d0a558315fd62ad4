package scim

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// The metadata documents advertise exactly what the service implements:
// filtering and patch are supported; bulk, sort, etag and password
// changes are not.

type supportFlag struct {
	Supported      bool `json:"supported"`
	MaxOperations  int  `json:"maxOperations,omitempty"`
	MaxPayloadSize int  `json:"maxPayloadSize,omitempty"`
	MaxResults     int  `json:"maxResults,omitempty"`
}

type authenticationScheme struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Primary     bool   `json:"primary,omitempty"`
}

type serviceProviderConfig struct {
	Schemas               []string               `json:"schemas"`
	DocumentationURI      string                 `json:"documentationUri,omitempty"`
	Patch                 supportFlag            `json:"patch"`
	Bulk                  supportFlag            `json:"bulk"`
	Filter                supportFlag            `json:"filter"`
	ChangePassword        supportFlag            `json:"changePassword"`
	Sort                  supportFlag            `json:"sort"`
	Etag                  supportFlag            `json:"etag"`
	AuthenticationSchemes []authenticationScheme `json:"authenticationSchemes"`
	Meta                  *Meta                  `json:"meta,omitempty"`
}

// handleServiceProviderConfig serves GET /ServiceProviderConfig
func (s *Service) handleServiceProviderConfig(c *gin.Context) {
	base := s.baseURL(c)
	writeJSON(c, http.StatusOK, serviceProviderConfig{
		Schemas: []string{SchemaServiceProviderConfig},
		Patch:   supportFlag{Supported: true},
		Bulk:    supportFlag{Supported: false},
		Filter:  supportFlag{Supported: true, MaxResults: s.config.SCIM.MaxPageSize},
		ChangePassword: supportFlag{
			Supported: false,
		},
		Sort: supportFlag{Supported: false},
		Etag: supportFlag{Supported: false},
		AuthenticationSchemes: []authenticationScheme{
			{
				Type:        "oauthbearertoken",
				Name:        "Bearer Token",
				Description: "Authentication via a bearer token in the Authorization header",
				Primary:     true,
			},
		},
		Meta: &Meta{
			ResourceType: "ServiceProviderConfig",
			Location:     base + "/ServiceProviderConfig",
		},
	})
}

type resourceType struct {
	Schemas     []string `json:"schemas"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Endpoint    string   `json:"endpoint"`
	Schema      string   `json:"schema"`
	Meta        *Meta    `json:"meta,omitempty"`
}

func userResourceType(base string) resourceType {
	return resourceType{
		Schemas:     []string{SchemaResourceType},
		ID:          "User",
		Name:        "User",
		Description: "User Account",
		Endpoint:    "/Users",
		Schema:      SchemaUser,
		Meta: &Meta{
			ResourceType: "ResourceType",
			Location:     base + "/ResourceTypes/User",
		},
	}
}

func groupResourceType(base string) resourceType {
	return resourceType{
		Schemas:     []string{SchemaResourceType},
		ID:          "Group",
		Name:        "Group",
		Description: "Group",
		Endpoint:    "/Groups",
		Schema:      SchemaGroup,
		Meta: &Meta{
			ResourceType: "ResourceType",
			Location:     base + "/ResourceTypes/Group",
		},
	}
}

// handleResourceTypes serves GET /ResourceTypes
func (s *Service) handleResourceTypes(c *gin.Context) {
	base := s.baseURL(c)
	writeJSON(c, http.StatusOK, NewListResponse(
		[]any{userResourceType(base), groupResourceType(base)}, 2, 1))
}

// handleResourceType serves GET /ResourceTypes/:name
func (s *Service) handleResourceType(c *gin.Context) {
	base := s.baseURL(c)
	switch strings.ToLower(c.Param("name")) {
	case "user":
		writeJSON(c, http.StatusOK, userResourceType(base))
	case "group":
		writeJSON(c, http.StatusOK, groupResourceType(base))
	default:
		writeError(c, s.logger, ErrNotFound("ResourceType not found"))
	}
}

type schemaAttribute struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	MultiValued   bool              `json:"multiValued"`
	Description   string            `json:"description,omitempty"`
	Required      bool              `json:"required"`
	Mutability    string            `json:"mutability"`
	Uniqueness    string            `json:"uniqueness,omitempty"`
	SubAttributes []schemaAttribute `json:"subAttributes,omitempty"`
}

type schemaDefinition struct {
	Schemas     []string          `json:"schemas"`
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Attributes  []schemaAttribute `json:"attributes"`
	Meta        *Meta             `json:"meta,omitempty"`
}

func userSchema(base string) schemaDefinition {
	return schemaDefinition{
		Schemas:     []string{SchemaSchema},
		ID:          SchemaUser,
		Name:        "User",
		Description: "User Account",
		Attributes: []schemaAttribute{
			{Name: "userName", Type: "string", Required: true, Mutability: "readWrite", Uniqueness: "server"},
			{Name: "name", Type: "complex", Mutability: "readWrite", SubAttributes: []schemaAttribute{
				{Name: "givenName", Type: "string", Mutability: "readWrite"},
				{Name: "familyName", Type: "string", Mutability: "readWrite"},
				{Name: "formatted", Type: "string", Mutability: "readOnly"},
			}},
			{Name: "emails", Type: "complex", MultiValued: true, Mutability: "readWrite", SubAttributes: []schemaAttribute{
				{Name: "value", Type: "string", Mutability: "readWrite"},
				{Name: "type", Type: "string", Mutability: "readWrite"},
				{Name: "primary", Type: "boolean", Mutability: "readWrite"},
			}},
			{Name: "active", Type: "boolean", Mutability: "readWrite"},
			{Name: "externalId", Type: "string", Mutability: "readWrite"},
		},
		Meta: &Meta{ResourceType: "Schema", Location: base + "/Schemas/" + SchemaUser},
	}
}

func groupSchema(base string) schemaDefinition {
	return schemaDefinition{
		Schemas:     []string{SchemaSchema},
		ID:          SchemaGroup,
		Name:        "Group",
		Description: "Group",
		Attributes: []schemaAttribute{
			{Name: "displayName", Type: "string", Required: true, Mutability: "readWrite", Uniqueness: "server"},
			{Name: "members", Type: "complex", MultiValued: true, Mutability: "readWrite", SubAttributes: []schemaAttribute{
				{Name: "value", Type: "string", Mutability: "immutable"},
				{Name: "display", Type: "string", Mutability: "readOnly"},
				{Name: "$ref", Type: "reference", Mutability: "immutable"},
			}},
			{Name: "externalId", Type: "string", Mutability: "readWrite"},
		},
		Meta: &Meta{ResourceType: "Schema", Location: base + "/Schemas/" + SchemaGroup},
	}
}

// handleSchemas serves GET /Schemas
func (s *Service) handleSchemas(c *gin.Context) {
	base := s.baseURL(c)
	writeJSON(c, http.StatusOK, NewListResponse(
		[]any{userSchema(base), groupSchema(base)}, 2, 1))
}

// handleSchema serves GET /Schemas/:urn
func (s *Service) handleSchema(c *gin.Context) {
	base := s.baseURL(c)
	switch c.Param("urn") {
	case SchemaUser:
		writeJSON(c, http.StatusOK, userSchema(base))
	case SchemaGroup:
		writeJSON(c, http.StatusOK, groupSchema(base))
	default:
		writeError(c, s.logger, ErrNotFound("Schema not found"))
	}
}
