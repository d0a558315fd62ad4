package scim

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scimgate/scimgate/internal/directory"
	"github.com/scimgate/scimgate/internal/metrics"
)

// scimType values carried in error responses (RFC 7644 3.12).
// invalidMemberReference is an extension for member refs that do not
// resolve to an existing account.
const (
	TypeInvalidFilter    = "invalidFilter"
	TypeInvalidPath      = "invalidPath"
	TypeInvalidValue     = "invalidValue"
	TypeInvalidMemberRef = "invalidMemberReference"
	TypeInvalidSyntax    = "invalidSyntax"
	TypeUniqueness       = "uniqueness"
	TypeNoTarget         = "noTarget"
)

// Error is a SCIM protocol error. It maps onto one HTTP status and one
// RFC 7644 Error body.
type Error struct {
	Status   int
	ScimType string
	Detail   string
}

func (e *Error) Error() string {
	if e.ScimType != "" {
		return fmt.Sprintf("scim: %d %s: %s", e.Status, e.ScimType, e.Detail)
	}
	return fmt.Sprintf("scim: %d: %s", e.Status, e.Detail)
}

// errorBody is the wire shape of an error response
type errorBody struct {
	Schemas  []string `json:"schemas"`
	Status   string   `json:"status"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

// ErrInvalidFilter rejects a filter expression the evaluator cannot parse
func ErrInvalidFilter(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, ScimType: TypeInvalidFilter, Detail: detail}
}

// ErrInvalidPath rejects a patch path outside the patchable-attribute table
func ErrInvalidPath(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, ScimType: TypeInvalidPath, Detail: detail}
}

// ErrInvalidValue rejects a body or operation value of the wrong shape
func ErrInvalidValue(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, ScimType: TypeInvalidValue, Detail: detail}
}

// ErrInvalidMemberRef rejects a member reference that does not resolve
// to an existing account
func ErrInvalidMemberRef(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, ScimType: TypeInvalidMemberRef, Detail: detail}
}

// ErrNotFound reports a resource id that does not resolve
func ErrNotFound(detail string) *Error {
	return &Error{Status: http.StatusNotFound, Detail: detail}
}

// ErrConflict reports a uniqueness violation (duplicate userName or
// displayName)
func ErrConflict(detail string) *Error {
	return &Error{Status: http.StatusConflict, ScimType: TypeUniqueness, Detail: detail}
}

// ErrUnsupported reports an advertised-unsupported capability
// (sorting, attribute projection, bulk)
func ErrUnsupported(detail string) *Error {
	return &Error{Status: http.StatusNotImplemented, Detail: detail}
}

// writeError renders any error as a SCIM Error response. Store sentinel
// errors are translated to their protocol equivalents; everything else
// becomes a generic 500 so internal detail never reaches the IdP.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var scimErr *Error
	switch {
	case errors.As(err, &scimErr):
		// already protocol-shaped
	case errors.Is(err, directory.ErrNotFound):
		scimErr = ErrNotFound("Resource not found")
	case errors.Is(err, directory.ErrConflict):
		scimErr = ErrConflict("Resource conflicts with an existing resource")
	default:
		log.Error("scim request failed", zap.Error(err))
		scimErr = &Error{Status: http.StatusInternalServerError, Detail: "An internal error occurred"}
	}

	metrics.RecordSCIMError(scimErr.ScimType, scimErr.Status)

	writeJSON(c, scimErr.Status, errorBody{
		Schemas:  []string{SchemaError},
		Status:   strconv.Itoa(scimErr.Status),
		ScimType: scimErr.ScimType,
		Detail:   scimErr.Detail,
	})
	c.Abort()
}
