package scim

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scimgate/scimgate/internal/metrics"
)

// handleListUsers serves GET /Users with optional filter and pagination.
// The filter is evaluated against the mapped resources so the compared
// value is exactly what the IdP sees on the wire.
func (s *Service) handleListUsers(c *gin.Context) {
	if err := checkListParams(c); err != nil {
		writeError(c, s.logger, err)
		return
	}

	p, err := s.parsePagination(c)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	var filter *Filter
	if raw := c.Query("filter"); raw != "" {
		filter, err = ParseFilter(raw, "userName")
		if err != nil {
			writeError(c, s.logger, err)
			return
		}
		metrics.RecordFilterQuery("User", filter.Attribute)
	}

	accounts, err := s.store.ListAccounts(c.Request.Context())
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	base := s.baseURL(c)
	matched := make([]*User, 0, len(accounts))
	for i := range accounts {
		u := userToSCIM(&accounts[i], base)
		if filter != nil && !filter.Matches(u.UserName) {
			continue
		}
		matched = append(matched, u)
	}

	pageUsers := page(matched, p)
	resources := make([]any, len(pageUsers))
	for i, u := range pageUsers {
		resources[i] = u
	}

	writeJSON(c, http.StatusOK, NewListResponse(resources, len(matched), p.startIndex))
}

// handleCreateUser serves POST /Users
func (s *Service) handleCreateUser(c *gin.Context) {
	var body User
	if err := bindBody(c, &body); err != nil {
		writeError(c, s.logger, err)
		return
	}

	account, err := userFromSCIM(&body, nil)
	if err != nil {
		metrics.RecordProvisioningOperation("User", "create", "rejected")
		writeError(c, s.logger, err)
		return
	}

	if err := s.store.CreateAccount(c.Request.Context(), account); err != nil {
		metrics.RecordProvisioningOperation("User", "create", "error")
		writeError(c, s.logger, err)
		return
	}

	metrics.RecordProvisioningOperation("User", "create", "success")
	s.logger.Info("user provisioned",
		zap.String("account_id", account.ID),
		zap.String("username", account.Username))

	resource := userToSCIM(account, s.baseURL(c))
	c.Header("Location", resource.Meta.Location)
	writeJSON(c, http.StatusCreated, resource)
}

// handleGetUser serves GET /Users/:id
func (s *Service) handleGetUser(c *gin.Context) {
	if err := checkListParams(c); err != nil {
		writeError(c, s.logger, err)
		return
	}

	account, err := s.store.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	writeJSON(c, http.StatusOK, userToSCIM(account, s.baseURL(c)))
}

// handleReplaceUser serves PUT /Users/:id with full-replacement
// semantics: attributes omitted from the body are reset to their
// defaults, not preserved.
func (s *Service) handleReplaceUser(c *gin.Context) {
	var body User
	if err := bindBody(c, &body); err != nil {
		writeError(c, s.logger, err)
		return
	}

	id := c.Param("id")
	if body.ID != "" && body.ID != id {
		writeError(c, s.logger, ErrInvalidValue("id in the body must match the id in the path"))
		return
	}

	existing, err := s.store.GetAccount(c.Request.Context(), id)
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	account, err := userFromSCIM(&body, existing)
	if err != nil {
		metrics.RecordProvisioningOperation("User", "replace", "rejected")
		writeError(c, s.logger, err)
		return
	}

	if err := s.store.UpdateAccount(c.Request.Context(), account); err != nil {
		metrics.RecordProvisioningOperation("User", "replace", "error")
		writeError(c, s.logger, err)
		return
	}

	metrics.RecordProvisioningOperation("User", "replace", "success")
	writeJSON(c, http.StatusOK, userToSCIM(account, s.baseURL(c)))
}

// handlePatchUser serves PATCH /Users/:id
func (s *Service) handlePatchUser(c *gin.Context) {
	var req PatchRequest
	if err := bindBody(c, &req); err != nil {
		writeError(c, s.logger, err)
		return
	}
	if err := checkPatchSchemas(&req); err != nil {
		writeError(c, s.logger, err)
		return
	}

	account, err := s.store.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, s.logger, err)
		return
	}

	if err := applyUserPatch(account, req.Operations); err != nil {
		metrics.RecordProvisioningOperation("User", "patch", "rejected")
		writeError(c, s.logger, err)
		return
	}

	if err := s.store.UpdateAccount(c.Request.Context(), account); err != nil {
		metrics.RecordProvisioningOperation("User", "patch", "error")
		writeError(c, s.logger, err)
		return
	}

	for _, op := range req.Operations {
		metrics.RecordPatchOperation("User", op.Op)
	}
	metrics.RecordProvisioningOperation("User", "patch", "success")
	writeJSON(c, http.StatusOK, userToSCIM(account, s.baseURL(c)))
}

// handleDeleteUser serves DELETE /Users/:id. A second delete of the
// same id reports NotFound rather than succeeding silently.
func (s *Service) handleDeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteAccount(c.Request.Context(), id); err != nil {
		metrics.RecordProvisioningOperation("User", "delete", "error")
		writeError(c, s.logger, err)
		return
	}

	metrics.RecordProvisioningOperation("User", "delete", "success")
	s.logger.Info("user deprovisioned", zap.String("account_id", id))
	c.Status(http.StatusNoContent)
}
